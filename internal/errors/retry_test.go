package errors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

func TestRetry_TransientRetriedToCeiling(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func(ctx context.Context) error {
		calls++
		return New(ErrCodeServerError, "HTTP 500", nil)
	})

	assert.Equal(t, 3, calls)
	require.Error(t, err)

	be, ok := err.(*BackendError)
	require.True(t, ok)
	assert.Equal(t, ClassUnavailable, be.Class)
	assert.Equal(t, 3, be.Attempts)
}

func TestRetry_AuthNotRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func(ctx context.Context) error {
		calls++
		return AuthError("HTTP 401", nil)
	})

	assert.Equal(t, 1, calls, "auth errors must not be retried")
	assert.Equal(t, ClassAuth, GetClass(err))
}

func TestRetry_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func(ctx context.Context) error {
		calls++
		return ClientError("HTTP 400", nil)
	})

	assert.Equal(t, 1, calls, "client errors must not be retried")
	assert.Equal(t, ClassClient, GetClass(err))
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), fastRetryConfig(3), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", TransientError("connection reset", nil)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestRetry_RateLimitedUsesServerHint(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Retry(context.Background(), fastRetryConfig(2), func(ctx context.Context) error {
		calls++
		return RateLimited("HTTP 429", nil).WithRetryAfter(30 * time.Millisecond)
	})

	assert.Equal(t, 2, calls)
	assert.Equal(t, ClassUnavailable, GetClass(err))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond,
		"server-suggested backoff should be honored")
}

func TestRetry_BackoffIncreases(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}

	var gaps []time.Duration
	last := time.Now()
	_ = Retry(context.Background(), cfg, func(ctx context.Context) error {
		now := time.Now()
		gaps = append(gaps, now.Sub(last))
		last = now
		return TransientError("still down", nil)
	})

	require.Len(t, gaps, 3)
	// First gap is the immediate first attempt; the next two are the
	// 10ms and 20ms backoff waits.
	assert.GreaterOrEqual(t, gaps[1], 10*time.Millisecond)
	assert.GreaterOrEqual(t, gaps[2], 20*time.Millisecond)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Retry(ctx, fastRetryConfig(5), func(ctx context.Context) error {
		calls++
		cancel()
		return TransientError("down", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResult_ZeroAttemptsCoercedToOne(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), RetryConfig{}, func(ctx context.Context) (int, error) {
		calls++
		return 42, ClientError("nope", nil)
	})

	assert.Equal(t, 1, calls)
	require.Error(t, err)
}
