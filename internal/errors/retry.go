package errors

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for backend calls.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which delay increases after each retry.
	Multiplier float64

	// Jitter adds randomness to delay to prevent thundering herd.
	Jitter bool
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retry executes a backend call with classification-aware retry.
//
// The returned error is classified into the taxonomy before deciding
// whether to retry: Auth and ClientError surface immediately, Transient
// retries with exponential backoff, RateLimited retries with the
// server-suggested backoff when present. When attempts are exhausted the
// last error is surfaced as BackendUnavailable annotated with the attempt
// count. If the context is cancelled, the context error is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := RetryWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryWithResult is Retry for calls that return a value.
// It is generic over the result type so ingestion and query calls share one
// policy.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.InitialDelay
	var last *BackendError

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, Classify(ctx.Err())
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		last = Classify(err)
		last.Attempts = attempt

		if !last.Retryable || attempt >= cfg.MaxAttempts {
			break
		}

		wait := delay
		if last.Class == ClassRateLimited && last.RetryAfter > 0 {
			wait = last.RetryAfter
		} else if cfg.Jitter {
			// delay * (0.5 + rand(0, 0.5))
			wait = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
		}

		select {
		case <-ctx.Done():
			return zero, Classify(ctx.Err())
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	if last.Retryable {
		// Exhausted retries on a retryable error.
		exhausted := Unavailable(last.Message, last)
		exhausted.Backend = last.Backend
		exhausted.Attempts = last.Attempts
		return zero, exhausted
	}
	return zero, last
}
