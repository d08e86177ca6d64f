package mailroom

import (
	"errors"
	"fmt"
)

// Domain error codes - the transport layer maps these to HTTP status codes.
const (
	ECONFIG       = "configuration"   // Service disabled or API key missing - no send attempted
	ECONFLICT     = "conflict"        // 409 - Resource already exists
	EFALLBACK     = "fallback"        // Native fallback send failed after provider failure
	EFORBIDDEN    = "forbidden"       // 403 - Permission denied
	EINTERNAL     = "internal"        // 500 - Internal server error
	EINVALID      = "invalid"         // 400 - Invalid input
	ENORECIPIENT  = "no_recipient"    // No recipient address could be resolved - no send attempted
	ENOTFOUND     = "not_found"       // 404 - Resource not found
	EPRECONDITION = "precondition"    // Document not in a submittable state - no send attempted
	EPROVIDER     = "provider"        // Send attempted, provider reported or caused a failure
	EUNAUTHORIZED = "unauthorized"    // 401 - Authentication required
)

// Provider failure reasons, carried on EPROVIDER errors.
const (
	ReasonRejected  = "rejected"  // Provider returned a non-200 response
	ReasonTimeout   = "timeout"   // Request timed out before a response arrived
	ReasonTransport = "transport" // Network-level failure before or during the request
)

// Error represents an application-specific error.
type Error struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Reason further qualifies provider errors (rejected, timeout, transport).
	Reason string `json:"reason,omitempty"`

	// Err is the underlying error (not exposed to clients).
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new application error with a formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an underlying error with application context.
func WrapError(code string, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL if the error is not an *Error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage extracts the user-safe message from an error.
// Returns a generic message if the error is not an *Error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An internal error occurred."
}

// ErrorReason extracts the provider failure reason from an error.
// Returns an empty string for non-provider errors.
func ErrorReason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsErrorCode checks if an error has the specified error code.
func IsErrorCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// NotFound creates a not found error.
func NotFound(format string, args ...any) *Error {
	return Errorf(ENOTFOUND, format, args...)
}

// Invalid creates a validation error.
func Invalid(format string, args ...any) *Error {
	return Errorf(EINVALID, format, args...)
}

// Unauthorized creates an authentication error.
func Unauthorized(format string, args ...any) *Error {
	return Errorf(EUNAUTHORIZED, format, args...)
}

// Forbidden creates a permission error.
func Forbidden(format string, args ...any) *Error {
	return Errorf(EFORBIDDEN, format, args...)
}

// Configuration creates a configuration error (service disabled, key missing).
func Configuration(format string, args ...any) *Error {
	return Errorf(ECONFIG, format, args...)
}

// Precondition creates a precondition error (document not submitted).
func Precondition(format string, args ...any) *Error {
	return Errorf(EPRECONDITION, format, args...)
}

// NoRecipient creates a recipient-resolution error.
func NoRecipient(format string, args ...any) *Error {
	return Errorf(ENORECIPIENT, format, args...)
}

// Provider creates a provider error with the given failure reason.
func Provider(reason string, message string, err error) *Error {
	return &Error{
		Code:    EPROVIDER,
		Message: message,
		Reason:  reason,
		Err:     err,
	}
}

// Fallback wraps a failed native fallback send, preserving the original
// provider error as the underlying cause.
func Fallback(message string, providerErr error) *Error {
	return &Error{
		Code:    EFALLBACK,
		Message: message,
		Err:     providerErr,
	}
}

// Internal creates an internal error, wrapping the underlying cause.
func Internal(message string, err error) *Error {
	return WrapError(EINTERNAL, message, err)
}
