package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	kerr "github.com/katya-platform/identity-core/pkg/errors"
)

// Claim names consumed by the extractor. These follow the standard OIDC
// claim registry plus the provider's realm-role claim layout.
const (
	// ClaimSubject is the stable provider-issued identity id.
	ClaimSubject = "sub"

	// ClaimPreferredUsername is the provider-side login name.
	ClaimPreferredUsername = "preferred_username"

	// ClaimEmail is the asserted email address.
	ClaimEmail = "email"

	// ClaimName is the pre-composed full name, when the provider sets one.
	ClaimName = "name"

	// ClaimGivenName and ClaimFamilyName are the name components used
	// when no pre-composed name claim is present.
	ClaimGivenName  = "given_name"
	ClaimFamilyName = "family_name"

	// ClaimRealmAccess is the object claim holding realm-level roles
	// under its "roles" key.
	ClaimRealmAccess = "realm_access"
)

// FromClaims maps a verified token's claim set to a [CanonicalIdentity].
// It is a pure function: no I/O, no mutation of the input.
//
// Display-name derivation precedence, applied exactly in this order:
//  1. the "name" claim, if non-blank
//  2. "given_name" + " " + "family_name", when both are non-blank
//  3. whichever of given_name/family_name is non-blank alone
//  4. the username
//
// Returns a *[kerr.Error] with [kerr.CodeTokenInvalid] when the claim set
// has no usable subject id.
func FromClaims(claims map[string]any) (*CanonicalIdentity, *kerr.Error) {
	sub := stringClaim(claims, ClaimSubject)
	if sub == "" {
		return nil, kerr.New(kerr.CodeTokenInvalid, "auth: token claims are missing the sub claim")
	}

	username := stringClaim(claims, ClaimPreferredUsername)

	return &CanonicalIdentity{
		SubjectID:   sub,
		Username:    username,
		Email:       stringClaim(claims, ClaimEmail),
		DisplayName: displayName(claims, username),
		Roles:       realmRoles(claims),
	}, nil
}

// FromToken parses an already-verified compact JWT and maps its claims to
// a [CanonicalIdentity]. The token's signature is NOT checked here; this
// is for use behind a boundary that has already verified it.
func FromToken(tokenStr string) (*CanonicalIdentity, *kerr.Error) {
	claims, err := ParseClaims(tokenStr)
	if err != nil {
		return nil, err
	}
	return FromClaims(claims)
}

// ParseClaims decodes a compact JWT's claim set without verifying the
// signature. Returns [kerr.CodeTokenInvalid] when the token is not a
// well-formed JWT.
func ParseClaims(tokenStr string) (map[string]any, *kerr.Error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil || token == nil {
		return nil, kerr.Wrap(err, kerr.CodeTokenInvalid, "auth: token is malformed")
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, kerr.New(kerr.CodeTokenInvalid, "auth: unable to extract token claims")
	}

	claims := make(map[string]any, len(mc))
	for k, v := range mc {
		claims[k] = v
	}
	return claims, nil
}

// displayName applies the display-name precedence over the name claims,
// falling back to the given username.
func displayName(claims map[string]any, username string) string {
	if name := strings.TrimSpace(stringClaim(claims, ClaimName)); name != "" {
		return name
	}

	given := strings.TrimSpace(stringClaim(claims, ClaimGivenName))
	family := strings.TrimSpace(stringClaim(claims, ClaimFamilyName))
	switch {
	case given != "" && family != "":
		return given + " " + family
	case given != "":
		return given
	case family != "":
		return family
	}

	return username
}

// realmRoles extracts the role names from the realm_access claim. The
// claim decodes as map[string]any{"roles": []any{...}}; entries that are
// not strings are skipped.
func realmRoles(claims map[string]any) []string {
	realmAccess, ok := claims[ClaimRealmAccess].(map[string]any)
	if !ok {
		return nil
	}
	rawRoles, ok := realmAccess["roles"].([]any)
	if !ok {
		return nil
	}

	roles := make([]string, 0, len(rawRoles))
	for _, r := range rawRoles {
		if s, ok := r.(string); ok && s != "" {
			roles = append(roles, s)
		}
	}
	if len(roles) == 0 {
		return nil
	}
	return roles
}

// stringClaim returns the claim as a string, or "" when absent or not a
// string.
func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}
