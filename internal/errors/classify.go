package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"
)

// Classify normalizes an arbitrary error into the taxonomy.
// BackendError values pass through unchanged; context and net errors map to
// Transient; everything else is Internal.
func Classify(err error) *BackendError {
	if err == nil {
		return nil
	}

	var be *BackendError
	if stderrors.As(err, &be) {
		return be
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return TimeoutError("deadline exceeded", err)
	case stderrors.Is(err, context.Canceled):
		return New(ErrCodeTimeout, "call cancelled", err)
	case stderrors.Is(err, syscall.ECONNRESET), stderrors.Is(err, syscall.ECONNREFUSED), stderrors.Is(err, syscall.EPIPE):
		return TransientError("connection failure", err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return TimeoutError("network timeout", err)
		}
		return TransientError("network error", err)
	}

	return InternalError(err.Error(), err)
}

// FromHTTPResponse classifies an HTTP error response per the taxonomy:
// 401/403 are credential failures, 429 is rate limiting (honoring
// Retry-After), other 4xx are client errors, 5xx are transient.
func FromHTTPResponse(resp *http.Response, body string) *BackendError {
	msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return New(ErrCodeBackendAuth, msg, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		be := New(ErrCodeRateLimited, msg, nil)
		if d := parseRetryAfter(resp.Header.Get("Retry-After")); d > 0 {
			be.RetryAfter = d
		}
		return be
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return New(ErrCodeBadRequest, msg, nil)
	case resp.StatusCode >= 500:
		return New(ErrCodeServerError, msg, nil)
	default:
		return InternalError(msg, nil)
	}
}

// parseRetryAfter parses a Retry-After header value.
// Supports delay-seconds; HTTP-date values are ignored.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
