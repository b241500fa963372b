package errors

import (
	"errors"
)

// AsError attempts to convert an error to an *Error. Returns the Error and
// true if successful, nil and false otherwise. This function traverses the
// error chain using errors.As.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the error code from an error. If the error is not an
// *Error or is nil, returns an empty string.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode checks if an error has the specified error code. Returns false
// if the error is nil or not an *Error.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsValidation checks if the error is a validation error (VAL_xxx).
func IsValidation(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "VAL"
}

// IsAuthFailed checks if the error means the provider rejected the user's
// credentials (CodeAuthFailed).
func IsAuthFailed(err error) bool {
	return HasCode(err, CodeAuthFailed)
}

// IsTokenInvalid checks if the error means an expired or invalid refresh
// token (CodeTokenInvalid). Callers must re-login when this is true.
func IsTokenInvalid(err error) bool {
	return HasCode(err, CodeTokenInvalid)
}

// IsServiceAuthFailed checks if the error means the service's own
// client-credentials exchange failed (CodeServiceAuthFailed).
func IsServiceAuthFailed(err error) bool {
	return HasCode(err, CodeServiceAuthFailed)
}

// IsNotFound checks if the error is a not found error (NF_xxx).
func IsNotFound(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "NF"
}

// IsConflict checks if the error is a conflict error (CONF_xxx).
func IsConflict(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "CONF"
}

// IsUserExists checks if the error means a duplicate registration
// (CodeUserExists). Distinct from IsRegistrationFailed so callers can
// surface "already taken" instead of a generic failure.
func IsUserExists(err error) bool {
	return HasCode(err, CodeUserExists)
}

// IsRegistrationFailed checks if the error means the provider rejected a
// signup for a non-conflict reason (REG_xxx).
func IsRegistrationFailed(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "REG"
}

// IsInternal checks if the error is an internal error (INT_xxx).
func IsInternal(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "INT"
}

// IsUnavailable checks if the error is a service unavailable error
// (UNAVAIL_xxx).
func IsUnavailable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "UNAVAIL"
}

// IsTimeout checks if the error is a timeout error (TIMEOUT_xxx).
func IsTimeout(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "TIMEOUT"
}

// IsRetryable checks if the error is potentially retryable. Timeout and
// unavailable errors are considered retryable; everything else is not.
// Note that the token broker itself never retries; retry policy belongs
// to its callers.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code.Category() {
	case "TIMEOUT", "UNAVAIL":
		return true
	default:
		return false
	}
}

// IsClientError checks if the error maps to a 4xx HTTP status. Client
// errors include validation, authentication, not found, and conflict.
// CodeServiceAuthFailed is excluded: it is an AUTH code but the fault is
// the service's, not the caller's.
func IsClientError(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	if e.Code == CodeServiceAuthFailed {
		return false
	}
	switch e.Code.Category() {
	case "VAL", "AUTH", "NF", "CONF":
		return true
	default:
		return false
	}
}

// IsServerError checks if the error maps to a 5xx HTTP status. Server
// errors include registration, internal, unavailable, and timeout errors,
// plus CodeServiceAuthFailed.
func IsServerError(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	if e.Code == CodeServiceAuthFailed {
		return true
	}
	switch e.Code.Category() {
	case "REG", "INT", "UNAVAIL", "TIMEOUT":
		return true
	default:
		return false
	}
}
