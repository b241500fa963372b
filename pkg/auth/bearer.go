package auth

import (
	"net/http"
	"strings"
)

// HeaderAuthorization is the standard authorization header carrying the
// bearer token.
const HeaderAuthorization = "Authorization"

// bearerPrefix is the standard "Bearer " prefix for authorization tokens.
const bearerPrefix = "Bearer "

// ExtractBearerToken extracts the token from an authorization header
// value. It handles the "Bearer " prefix case-insensitively.
// Returns an empty string if the header is empty or does not have a
// bearer prefix.
func ExtractBearerToken(authHeader string) string {
	if len(authHeader) <= len(bearerPrefix) {
		return ""
	}
	// Case-insensitive comparison for "Bearer " prefix.
	prefix := authHeader[:len(bearerPrefix)]
	if !strings.EqualFold(prefix, bearerPrefix) {
		return ""
	}
	return authHeader[len(bearerPrefix):]
}

// BearerTokenFromRequest extracts the bearer token from an HTTP request's
// Authorization header. Returns an empty string when the header is
// missing or not a bearer credential.
func BearerTokenFromRequest(r *http.Request) string {
	return ExtractBearerToken(r.Header.Get(HeaderAuthorization))
}

// Middleware returns an HTTP middleware that derives the canonical
// identity from the request's already-verified bearer token and stores
// both the identity and the raw token in the request context.
//
// Requests without a bearer token, or whose token cannot be decoded, pass
// through unchanged: endpoints that require an identity enforce its
// presence themselves via [IdentityFromContext]. The middleware never
// rejects a request, because public endpoints (login, register, health)
// share the same chain.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerTokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := FromToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			ctx = ContextWithRawToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
