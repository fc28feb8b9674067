package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("cloudsearch", WithMaxFailures(3))

	for i := 0; i < 2; i++ {
		cb.Record(TransientError("down", nil))
		assert.True(t, cb.Allow())
	}

	cb.Record(TransientError("down", nil))
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("vector", WithMaxFailures(3))

	cb.Record(TransientError("down", nil))
	cb.Record(TransientError("down", nil))
	cb.Record(nil)

	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("graph", WithMaxFailures(2))

	for i := 0; i < 5; i++ {
		cb.Record(ClientError("bad request", nil))
		cb.Record(AuthError("bad key", nil))
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker("cloudsearch",
		WithMaxFailures(1),
		WithResetTimeout(10*time.Millisecond))

	cb.Record(Unavailable("exhausted", nil))
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow(), "half-open allows a probe request")

	cb.Record(nil)
	assert.Equal(t, StateClosed, cb.State())
}
