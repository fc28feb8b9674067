package errors

import (
	"fmt"
	"time"
)

// BackendError is the structured error type for Parallax.
// It carries the taxonomy class the retry policy and orchestrators act on,
// plus context for logging and per-leg outcome reporting.
type BackendError struct {
	// Code is the unique error code (e.g., "ERR_301_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Class is the taxonomy class (Auth, ClientError, Transient, ...).
	Class Class

	// Severity is the error severity level.
	Severity Severity

	// Backend names the backend the error originated from, if any.
	Backend string

	// Attempts is the number of attempts made before this error was
	// surfaced. Zero means the retry policy was not involved.
	Attempts int

	// RetryAfter is a server-suggested backoff, if the backend provided one
	// (e.g., via a Retry-After header). Zero means no hint.
	RetryAfter time.Duration

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Backend, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with BackendError.
func (e *BackendError) Is(target error) bool {
	if t, ok := target.(*BackendError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithBackend tags the error with the originating backend name.
// Returns the error for method chaining.
func (e *BackendError) WithBackend(name string) *BackendError {
	e.Backend = name
	return e
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *BackendError) WithDetail(key, value string) *BackendError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithRetryAfter records a server-suggested backoff.
func (e *BackendError) WithRetryAfter(d time.Duration) *BackendError {
	e.RetryAfter = d
	return e
}

// New creates a new BackendError with the given code and message.
// Class, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *BackendError {
	class := classFromCode(code)
	return &BackendError{
		Code:      code,
		Message:   message,
		Class:     class,
		Severity:  severityFromClass(class),
		Cause:     cause,
		Retryable: classRetryable(class),
	}
}

// Wrap creates a BackendError from an existing error.
// The error's message becomes the BackendError message.
func Wrap(code string, err error) *BackendError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Unauthorized creates a tenant-context error. Always surfaced before any
// backend call is made.
func Unauthorized(message string) *BackendError {
	return New(ErrCodeUnauthorized, message, nil)
}

// QuotaExceeded creates a tenant-quota error.
func QuotaExceeded(message string) *BackendError {
	return New(ErrCodeQuotaExceeded, message, nil)
}

// AuthError creates a backend credential error. Never retried.
func AuthError(message string, cause error) *BackendError {
	return New(ErrCodeBackendAuth, message, cause)
}

// ClientError creates a malformed-request error. Never retried.
func ClientError(message string, cause error) *BackendError {
	return New(ErrCodeBadRequest, message, cause)
}

// TransientError creates a retryable network error.
func TransientError(message string, cause error) *BackendError {
	return New(ErrCodeConnection, message, cause)
}

// TimeoutError creates a retryable timeout error.
func TimeoutError(message string, cause error) *BackendError {
	return New(ErrCodeTimeout, message, cause)
}

// RateLimited creates a retryable rate-limit error.
func RateLimited(message string, cause error) *BackendError {
	return New(ErrCodeRateLimited, message, cause)
}

// Unavailable creates a retries-exhausted error.
func Unavailable(message string, cause error) *BackendError {
	return New(ErrCodeBackendUnavailable, message, cause)
}

// IsolationViolation creates a fatal cross-tenant integrity error.
func IsolationViolation(message string) *BackendError {
	return New(ErrCodeIsolationViolation, message, nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *BackendError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a BackendError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := err.(*BackendError); ok {
		return be.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors fail the whole call closed.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := err.(*BackendError); ok {
		return be.Severity == SeverityFatal
	}
	return false
}

// GetClass extracts the taxonomy class from an error.
// Returns ClassInternal for non-BackendError values and empty for nil.
func GetClass(err error) Class {
	if err == nil {
		return ""
	}
	if be, ok := err.(*BackendError); ok {
		return be.Class
	}
	return ClassInternal
}

// GetCode extracts the error code from a BackendError.
// Returns empty string if not a BackendError.
func GetCode(err error) string {
	if be, ok := err.(*BackendError); ok {
		return be.Code
	}
	return ""
}
