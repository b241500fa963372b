// Package errors provides standardized error types and error handling
// utilities for the Katya identity platform. It defines the error taxonomy
// shared by the token broker, the directory client, the user reconciliation
// engine, and the cached item service, together with helpers for creating,
// wrapping, and inspecting errors.
//
// # Error Categories
//
// The package defines several error categories that map to common failure
// scenarios:
//
//   - Validation errors: invalid input, missing required fields
//   - Authentication errors: rejected credentials, invalid refresh tokens,
//     broken service-to-service authentication
//   - NotFound errors: resource or user does not exist
//   - Conflict errors: resource already exists (duplicate registration)
//   - Registration errors: the identity provider rejected a signup
//   - Internal errors: unexpected system failures, database errors
//   - Unavailable errors: the identity provider or a dependency is down
//   - Timeout errors: operation exceeded its time limit
//
// # Error Codes
//
// Each error includes a machine-readable code (e.g., "AUTH_001") that is
// returned to API clients and used for alerting. Codes follow the pattern
// CATEGORY_XXX where CATEGORY is a short identifier and XXX is a numeric
// code. Codes are stable once assigned.
//
// # Boundary Translation
//
// The token broker and the directory client translate transport and
// provider errors into this taxonomy at their boundary. Callers above them
// never see raw transport errors:
//
//	tokens, err := broker.ExchangePassword(ctx, username, password)
//	if errors.IsAuthFailed(err) {
//	    // bad credentials, 401 to the client
//	}
//	if errors.IsUnavailable(err) {
//	    // provider down, 503 to the client
//	}
package errors
