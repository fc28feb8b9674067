package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassAndSeverity(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		wantClass Class
		wantSev   Severity
		retryable bool
	}{
		{"unauthorized", ErrCodeUnauthorized, ClassUnauthorized, SeverityError, false},
		{"quota", ErrCodeQuotaExceeded, ClassQuotaExceeded, SeverityError, false},
		{"backend auth", ErrCodeBackendAuth, ClassAuth, SeverityError, false},
		{"bad request", ErrCodeBadRequest, ClassClient, SeverityError, false},
		{"timeout", ErrCodeTimeout, ClassTransient, SeverityWarning, true},
		{"server error", ErrCodeServerError, ClassTransient, SeverityWarning, true},
		{"rate limited", ErrCodeRateLimited, ClassRateLimited, SeverityWarning, true},
		{"unavailable", ErrCodeBackendUnavailable, ClassUnavailable, SeverityError, false},
		{"isolation", ErrCodeIsolationViolation, ClassIsolation, SeverityFatal, false},
		{"unknown code", "ERR_999_WAT", ClassInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.wantClass, err.Class)
			assert.Equal(t, tt.wantSev, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestBackendError_ErrorString(t *testing.T) {
	err := TransientError("connection reset", nil).WithBackend("vector")
	assert.Contains(t, err.Error(), "ERR_302_CONNECTION")
	assert.Contains(t, err.Error(), "vector")

	plain := Unauthorized("no tenant context")
	assert.True(t, strings.HasPrefix(plain.Error(), "[ERR_101_UNAUTHORIZED]"))
}

func TestBackendError_UnwrapChain(t *testing.T) {
	cause := fmt.Errorf("socket closed")
	err := TransientError("connection failure", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestWrap_NilReturnsNil(t *testing.T) {
	var be *BackendError = Wrap(ErrCodeInternal, nil)
	assert.Nil(t, be)
}

func TestIsFatal_OnlyIsolation(t *testing.T) {
	assert.True(t, IsFatal(IsolationViolation("cross-tenant hit")))
	assert.False(t, IsFatal(TransientError("timeout", nil)))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(stderrors.New("plain")))
}

func TestGetClass(t *testing.T) {
	assert.Equal(t, ClassAuth, GetClass(AuthError("bad key", nil)))
	assert.Equal(t, ClassInternal, GetClass(stderrors.New("plain")))
	assert.Equal(t, Class(""), GetClass(nil))
}

func TestClassify_ContextAndNetErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	be := Classify(ctx.Err())
	require.NotNil(t, be)
	assert.Equal(t, ClassTransient, be.Class)
	assert.True(t, be.Retryable)

	passthrough := AuthError("bad key", nil)
	assert.Same(t, passthrough, Classify(passthrough))

	internal := Classify(stderrors.New("wat"))
	assert.Equal(t, ClassInternal, internal.Class)
	assert.False(t, internal.Retryable)
}

func TestFromHTTPResponse(t *testing.T) {
	tests := []struct {
		status    int
		wantClass Class
	}{
		{http.StatusUnauthorized, ClassAuth},
		{http.StatusForbidden, ClassAuth},
		{http.StatusBadRequest, ClassClient},
		{http.StatusNotFound, ClassClient},
		{http.StatusTooManyRequests, ClassRateLimited},
		{http.StatusInternalServerError, ClassTransient},
		{http.StatusBadGateway, ClassTransient},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: http.Header{}}
			be := FromHTTPResponse(resp, "body")
			assert.Equal(t, tt.wantClass, be.Class)
		})
	}
}

func TestFromHTTPResponse_RetryAfterHint(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: header}

	be := FromHTTPResponse(resp, "slow down")
	assert.Equal(t, ClassRateLimited, be.Class)
	assert.Equal(t, 7*time.Second, be.RetryAfter)
}
