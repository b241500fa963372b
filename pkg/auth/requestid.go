package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID is the HTTP header carrying the request correlation id.
const HeaderRequestID = "X-Request-ID"

// RequestIDMiddleware returns an HTTP middleware that ensures every
// request carries a correlation id. An id supplied by the caller via
// [HeaderRequestID] is trusted and propagated; otherwise a fresh UUID
// is generated. The id is stored in the request context and echoed on
// the response so clients can reference it in support requests.
//
// Example:
//
//	mux := http.NewServeMux()
//	handler := auth.RequestIDMiddleware()(mux)
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set(HeaderRequestID, id)
			ctx := ContextWithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithRequestID returns a new context carrying the request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request id from the context.
// Returns the id and true if present, or "" and false otherwise.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}
