// Package errors provides structured error handling for Parallax.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Tenant/authorization errors
//   - 2XX: Backend auth and request errors
//   - 3XX: Network errors
//   - 4XX: Data integrity errors
//   - 5XX: Internal errors
package errors

// Class is the error classification used by the retry policy and the
// orchestration layer to decide how a failure is handled.
type Class string

const (
	// ClassUnauthorized indicates a missing or invalid tenant context.
	// Fails before any backend is touched.
	ClassUnauthorized Class = "UNAUTHORIZED"
	// ClassQuotaExceeded indicates the tenant is over its document or
	// storage limit. Fails before ingestion.
	ClassQuotaExceeded Class = "QUOTA_EXCEEDED"
	// ClassAuth indicates a backend credential failure. Never retried.
	ClassAuth Class = "AUTH"
	// ClassClient indicates a malformed request to a backend. Never retried.
	ClassClient Class = "CLIENT_ERROR"
	// ClassTransient indicates timeouts, 5xx responses, and connection
	// resets. Retried with exponential backoff.
	ClassTransient Class = "TRANSIENT"
	// ClassRateLimited indicates the backend asked us to slow down.
	// Retried with the server-suggested or default backoff.
	ClassRateLimited Class = "RATE_LIMITED"
	// ClassUnavailable indicates retries were exhausted.
	ClassUnavailable Class = "BACKEND_UNAVAILABLE"
	// ClassIsolation indicates a backend returned cross-tenant data.
	// Treated as a fatal integrity fault.
	ClassIsolation Class = "ISOLATION_VIOLATION"
	// ClassInternal indicates an unexpected internal error.
	ClassInternal Class = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an integrity fault, must fail closed.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the call can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Tenant errors (100-199)
	ErrCodeUnauthorized    = "ERR_101_UNAUTHORIZED"
	ErrCodeTenantSuspended = "ERR_102_TENANT_SUSPENDED"
	ErrCodeTenantNotFound  = "ERR_103_TENANT_NOT_FOUND"
	ErrCodeQuotaExceeded   = "ERR_104_QUOTA_EXCEEDED"

	// Backend auth/request errors (200-299)
	ErrCodeBackendAuth       = "ERR_201_BACKEND_AUTH"
	ErrCodeBadRequest        = "ERR_202_BAD_REQUEST"
	ErrCodeCapabilityMissing = "ERR_203_CAPABILITY_MISSING"

	// Network errors (300-399)
	ErrCodeTimeout            = "ERR_301_TIMEOUT"
	ErrCodeConnection         = "ERR_302_CONNECTION"
	ErrCodeServerError        = "ERR_303_SERVER_ERROR"
	ErrCodeRateLimited        = "ERR_304_RATE_LIMITED"
	ErrCodeBackendUnavailable = "ERR_305_BACKEND_UNAVAILABLE"

	// Integrity errors (400-499)
	ErrCodeIsolationViolation = "ERR_401_ISOLATION_VIOLATION"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// classFromCode maps an error code to its taxonomy class.
func classFromCode(code string) Class {
	switch code {
	case ErrCodeUnauthorized, ErrCodeTenantSuspended, ErrCodeTenantNotFound:
		return ClassUnauthorized
	case ErrCodeQuotaExceeded:
		return ClassQuotaExceeded
	case ErrCodeBackendAuth:
		return ClassAuth
	case ErrCodeBadRequest, ErrCodeCapabilityMissing:
		return ClassClient
	case ErrCodeTimeout, ErrCodeConnection, ErrCodeServerError:
		return ClassTransient
	case ErrCodeRateLimited:
		return ClassRateLimited
	case ErrCodeBackendUnavailable:
		return ClassUnavailable
	case ErrCodeIsolationViolation:
		return ClassIsolation
	default:
		return ClassInternal
	}
}

// severityFromClass determines severity based on the taxonomy class.
func severityFromClass(class Class) Severity {
	switch class {
	case ClassIsolation:
		return SeverityFatal
	case ClassTransient, ClassRateLimited:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// classRetryable reports whether a class may be retried at all.
func classRetryable(class Class) bool {
	switch class {
	case ClassTransient, ClassRateLimited:
		return true
	default:
		return false
	}
}
