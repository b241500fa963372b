// Package auth provides the identity primitives for the Katya identity
// platform: the canonical identity record derived from a verified OIDC
// token, the claims extractor that produces it, and context plumbing for
// carrying the identity through a request.
//
// Token verification is NOT performed here. The inbound boundary (an API
// gateway or the framework's JWT filter) verifies signatures and expiry
// before a request reaches this code; this package only maps an
// already-verified claim set to a [CanonicalIdentity].
package auth

// CanonicalIdentity is the normalized identity derived from a verified
// token's claims. It is produced fresh per token and never persisted;
// the reconciliation engine merges it into the local user record.
type CanonicalIdentity struct {
	// SubjectID is the provider-issued, stable, unique identifier for
	// the identity (the "sub" claim). All local user rows key on it.
	SubjectID string

	// Username is the provider-side login name ("preferred_username").
	Username string

	// Email is the email claim, or empty when the provider did not
	// assert one.
	Email string

	// DisplayName is the normalized human-readable name. See
	// [FromClaims] for the derivation precedence.
	DisplayName string

	// Roles are the realm-level role names asserted by the provider.
	Roles []string
}

// HasRole reports whether the identity carries the given realm role.
func (id *CanonicalIdentity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}
