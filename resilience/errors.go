package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker short-circuits a
	// call without contacting the backend.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when a token could not be acquired
	// within the wait budget.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrPoolExhausted is returned when the connection pool is at capacity.
	ErrPoolExhausted = errors.New("resilience: connection pool at capacity")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")
)
