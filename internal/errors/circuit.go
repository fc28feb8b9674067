package errors

import (
	"sync"
	"time"
)

// CircuitState represents the circuit breaker state.
type CircuitState int

const (
	// StateClosed is the normal state where requests are allowed.
	StateClosed CircuitState = iota
	// StateOpen is when the circuit is tripped and requests are blocked.
	StateOpen
	// StateHalfOpen is when the circuit is testing if the backend recovered.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards one backend against cascading failures by failing
// fast once the backend has produced enough consecutive availability
// failures. Auth and client errors do not trip the circuit: they say
// nothing about the backend's availability.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.RWMutex
	state       CircuitState
	failures    int
	lastFailure time.Time
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets the number of failures before opening the circuit.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.maxFailures = n
	}
}

// WithResetTimeout sets the time to wait before attempting recovery.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.resetTimeout = d
	}
}

// NewCircuitBreaker creates a new circuit breaker for the named backend.
// Default: 5 failures, 30 second reset timeout.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		maxFailures:  5,
		resetTimeout: 30 * time.Second,
		state:        StateClosed,
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

// Name returns the backend name this breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.currentState()
}

// currentState returns the state, checking for transition to half-open.
// Must be called with at least a read lock held.
func (cb *CircuitBreaker) currentState() CircuitState {
	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			return StateHalfOpen
		}
	}
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Allow checks if a request should be allowed through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	switch cb.currentState() {
	case StateClosed, StateHalfOpen:
		return true
	default: // StateOpen
		return false
	}
}

// RecordSuccess records a successful request and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = StateClosed
}

// Record updates the breaker from a call outcome. Only availability
// failures (Transient, RateLimited, BackendUnavailable) count toward
// opening the circuit; other errors and nil reset it or leave it alone.
func (cb *CircuitBreaker) Record(err error) {
	if err == nil {
		cb.RecordSuccess()
		return
	}

	switch GetClass(err) {
	case ClassTransient, ClassRateLimited, ClassUnavailable:
		cb.recordFailure()
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.failures >= cb.maxFailures || cb.state == StateHalfOpen {
		cb.state = StateOpen
	}
}
