package user

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/katya-platform/identity-core/pkg/auth"
)

// DefaultExcludedPaths lists the path prefixes the sync middleware skips:
// public auth endpoints (other than the current-user endpoint, which does
// its own full sync), health checks, and diagnostic endpoints.
var DefaultExcludedPaths = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/refresh",
	"/api/auth/logout",
	"/api/auth/url",
	"/health",
	"/test",
}

// SyncMiddleware returns an HTTP middleware that guarantees a local user
// row exists for every authenticated request, before business logic
// runs.
//
// The gate is check-then-act: requests whose subject already has a row
// skip entirely, paying one existence query and no write. Requests with
// no identity in context, or whose path matches an excluded prefix, are
// passed through untouched.
//
// Any error or panic inside the gate is logged and swallowed; the
// reconciliation trigger must never abort the underlying request. When
// excludedPaths is nil, [DefaultExcludedPaths] is used.
func SyncMiddleware(reconciler *Reconciler, excludedPaths []string) func(http.Handler) http.Handler {
	if excludedPaths == nil {
		excludedPaths = DefaultExcludedPaths
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok || pathExcluded(r.URL.Path, excludedPaths) {
				next.ServeHTTP(w, r)
				return
			}

			ensureUser(r, reconciler, identity)
			next.ServeHTTP(w, r)
		})
	}
}

// ensureUser runs the existence gate, containing every failure mode so
// the request proceeds regardless.
func ensureUser(r *http.Request, reconciler *Reconciler, identity *auth.CanonicalIdentity) {
	ctx := r.Context()
	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "user: panic during request-scoped sync",
				"subject_id", identity.SubjectID,
				"panic", rec,
			)
		}
	}()

	if err := reconciler.EnsureUser(ctx, identity); err != nil {
		slog.WarnContext(ctx, "user: request-scoped sync failed",
			"subject_id", identity.SubjectID,
			"path", r.URL.Path,
			"error", err,
		)
	}
}

// pathExcluded reports whether the request path matches any excluded
// prefix.
func pathExcluded(path string, excluded []string) bool {
	for _, prefix := range excluded {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
