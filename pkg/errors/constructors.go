package errors

import (
	"errors"
	"fmt"
)

// New creates a new Error with the specified code and message.
// Use this for creating errors without an underlying cause.
//
// Example:
//
//	err := errors.New(errors.CodeValidation, "username is required")
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the specified code and formatted message.
//
// Example:
//
//	err := errors.Newf(errors.CodeUserNotFound, "user %q not found", username)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context. The wrapped error
// becomes the Cause of the new error. If err is nil, Wrap returns nil.
//
// Example:
//
//	row, err := store.FindBySubjectID(ctx, sub)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeInternalDatabase, "failed to load user")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message. The wrapped error
// becomes the Cause of the new error. If err is nil, Wrapf returns nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Validation creates a new validation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// AuthFailed creates a new authentication error for rejected user
// credentials.
func AuthFailed(message string) *Error {
	return New(CodeAuthFailed, message)
}

// TokenInvalid creates a new error for an expired or invalid refresh token.
// Callers seeing this must re-login; retrying the same token is pointless.
func TokenInvalid(message string) *Error {
	return New(CodeTokenInvalid, message)
}

// ServiceAuthFailed creates a new error for a failed service-to-service
// (client-credentials) exchange. No admin operation can proceed without the
// service token, so this is fatal to the triggering operation.
func ServiceAuthFailed(message string) *Error {
	return New(CodeServiceAuthFailed, message)
}

// NotFound creates a new not found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// NotFoundf creates a new not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// UserExists creates a new conflict error for a duplicate registration.
func UserExists(message string) *Error {
	return New(CodeUserExists, message)
}

// RegistrationFailed creates a new error for a provider-rejected signup
// that was not a duplicate-user conflict.
func RegistrationFailed(message string) *Error {
	return New(CodeRegistrationFailed, message)
}

// Internal creates a new internal error. Use this for unexpected system
// failures that should not expose details to users.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Internalf creates a new internal error with a formatted message.
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// Unavailable creates a new service unavailable error.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Timeout creates a new timeout error.
func Timeout(message string) *Error {
	return New(CodeTimeout, message)
}

// FromError converts a standard error to an Error. If the error is already
// an *Error, it is returned as-is. Otherwise, it is wrapped as an internal
// error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
