package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type used for context keys in this package.
// Using a distinct type prevents collisions with keys from other packages.
type contextKey int

const (
	// identityKey stores the authenticated CanonicalIdentity in the context.
	identityKey contextKey = iota

	// rawTokenKey stores the raw bearer token string in the context, for
	// flows that must forward it to the identity provider (current-user
	// sync, logout).
	rawTokenKey

	// requestIDKey stores the per-request correlation id set by
	// [RequestIDMiddleware].
	requestIDKey
)

// ContextWithIdentity returns a new context with the given identity
// attached. The identity can later be retrieved with
// [IdentityFromContext].
//
// This is typically called by HTTP middleware after the inbound boundary
// has verified the bearer token.
func ContextWithIdentity(ctx context.Context, identity *CanonicalIdentity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the identity from the context.
// Returns the identity and true if present, or nil and false if no
// identity has been set.
//
// Example:
//
//	identity, ok := auth.IdentityFromContext(ctx)
//	if !ok {
//	    return errors.New(errors.CodeAuthFailed, "no identity in context")
//	}
//	log.Info("request from", "subject", identity.SubjectID)
func IdentityFromContext(ctx context.Context) (*CanonicalIdentity, bool) {
	identity, ok := ctx.Value(identityKey).(*CanonicalIdentity)
	return identity, ok
}

// MustIdentityFromContext retrieves the identity from the context,
// panicking if none is present. This should only be used in code paths
// where an identity is guaranteed to exist (e.g., after authentication
// middleware).
func MustIdentityFromContext(ctx context.Context) *CanonicalIdentity {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		panic("auth: no identity in context; ensure authentication middleware is configured")
	}
	return identity
}

// ContextWithRawToken returns a new context carrying the raw bearer token
// string. Tokens are bearer values passed through per request; they are
// never persisted.
func ContextWithRawToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, rawTokenKey, token)
}

// RawTokenFromContext retrieves the raw bearer token from the context.
// Returns the token and true if present, or an empty string and false
// otherwise.
func RawTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(rawTokenKey).(string)
	return token, ok
}

// TraceIDFromContext extracts the OpenTelemetry trace ID from the context.
// Returns the trace ID as a hex string and true if a valid trace is
// active, or an empty string and false if no trace is present.
//
// Error payloads include this value as the correlation id, letting
// operators link a user-visible failure to its distributed trace.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}

// SpanIDFromContext extracts the OpenTelemetry span ID from the context.
// Returns the span ID as a hex string and true if a valid span is active,
// or an empty string and false if no span is present.
func SpanIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.SpanID().String(), true
}
