package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., AUTH, VAL, NF) and XXX is a three-digit numeric code.
//
// Error codes are designed to be:
//   - Stable: codes do not change once assigned
//   - Unique: each error condition has a distinct code
//   - Machine-readable: suitable for automated client-side error handling
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Authentication errors (401 Unauthorized)
//	NF_xxx      - Not found errors (404 Not Found)
//	CONF_xxx    - Conflict errors (409 Conflict)
//	REG_xxx     - Provider registration errors (502 Bad Gateway)
//	INT_xxx     - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when request input fails validation rules. Field-level detail
	// is carried in Error.Details under the "fields" key.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Used when a grant exchange with the identity provider fails.

	// CodeAuthFailed indicates the provider rejected the user's
	// credentials (password or authorization-code grant).
	CodeAuthFailed Code = "AUTH_001"

	// CodeTokenInvalid indicates an expired or invalid refresh token.
	// Distinct from CodeAuthFailed: the caller must re-login rather
	// than retry with corrected credentials.
	CodeTokenInvalid Code = "AUTH_002"

	// CodeServiceAuthFailed indicates the service's own client-credentials
	// exchange with the provider failed. Fatal to the triggering admin
	// operation; maps to HTTP 503 because the fault is not the caller's.
	CodeServiceAuthFailed Code = "AUTH_003"

	// Not found errors (NF_xxx) - HTTP 404

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeUserNotFound indicates the requested user was not found,
	// locally or in the provider directory.
	CodeUserNotFound Code = "NF_002"

	// Conflict errors (CONF_xxx) - HTTP 409

	// CodeConflict indicates a general conflict error.
	CodeConflict Code = "CONF_001"

	// CodeUserExists indicates the provider reported a duplicate
	// username or email during registration.
	CodeUserExists Code = "CONF_002"

	// Registration errors (REG_xxx) - HTTP 502
	// Used when the identity provider rejects a signup for any reason
	// other than a duplicate-user conflict.

	// CodeRegistrationFailed indicates the provider rejected a user
	// creation request with a non-conflict error.
	CodeRegistrationFailed Code = "REG_001"

	// Internal errors (INT_xxx) - HTTP 500

	// CodeInternal indicates an unexpected internal error (catch-all).
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeProviderUnavailable indicates the identity provider or another
	// dependency could not be reached (transport failure or 5xx).
	CodeProviderUnavailable Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504

	// CodeTimeout indicates a general timeout.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a database operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"

	// CodeTimeoutProvider indicates a call to the identity provider
	// timed out.
	CodeTimeoutProvider Code = "TIMEOUT_003"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL",
// "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
