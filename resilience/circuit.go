package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the backend recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
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

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	// Default: 5
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open before allowing a
	// half-open probe.
	// Default: 60 seconds
	OpenTimeout time.Duration

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit.
	// Default: 3
	SuccessThreshold int

	// FailureWindow is how long the closed-state failure counter survives
	// without a new failure. Failures older than the window are forgotten,
	// so a provider is not penalized forever for an old incident.
	// Default: 300 seconds
	FailureWindow time.Duration

	// MaxProbes is the max in-flight requests allowed in half-open state.
	// Default: 1
	MaxProbes int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error counts as a backend failure.
	// Caller-input and credential errors should return false so they do
	// not affect breaker state.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// CircuitBreaker implements the circuit breaker pattern for one provider.
// State is mutated only through the transition logic below; callers share
// a single instance per provider.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu             sync.Mutex
	state          State
	failures       int
	successes      int
	inFlightProbes int
	lastFailure    time.Time
	transitionedAt time.Time

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 3
	}
	if config.FailureWindow <= 0 {
		config.FailureWindow = 300 * time.Second
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Execute runs the operation through the circuit breaker.
// Returns ErrCircuitOpen without invoking op when the circuit is open or
// the half-open probe budget is spent.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state, applying the open-timeout
// transition if it is due.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// ForceOpen opens the circuit regardless of failure counts. Used for
// operational override; the circuit recovers through the normal
// open -> half-open -> closed path.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setStateLocked(StateOpen)
}

// ForceClose closes the circuit and clears all counters.
func (cb *CircuitBreaker) ForceClose() {
	cb.Reset()
}

// Reset returns the breaker to a pristine closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.successes = 0
	cb.inFlightProbes = 0
	cb.setStateLocked(StateClosed)
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlightProbes >= cb.config.MaxProbes {
			return ErrCircuitOpen
		}
		cb.inFlightProbes++
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()

	switch cb.state {
	case StateClosed:
		if !cb.config.IsFailure(err) {
			return
		}
		// Forget failures older than the window before counting this one.
		if !cb.lastFailure.IsZero() && now.Sub(cb.lastFailure) > cb.config.FailureWindow {
			cb.failures = 0
		}
		cb.failures++
		cb.lastFailure = now
		if cb.failures >= cb.config.FailureThreshold {
			cb.setStateLocked(StateOpen)
		}

	case StateHalfOpen:
		if cb.inFlightProbes > 0 {
			cb.inFlightProbes--
		}
		if cb.config.IsFailure(err) {
			// Any failure during probing reopens immediately.
			cb.lastFailure = now
			cb.successes = 0
			cb.setStateLocked(StateOpen)
			return
		}
		if err != nil {
			// A filtered error (auth, local rate limit) says nothing
			// about backend health; the probe slot is returned and
			// neither counter moves.
			return
		}
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.failures = 0
			cb.successes = 0
			cb.setStateLocked(StateClosed)
		}

	case StateOpen:
		// A request admitted before ForceOpen finished after the
		// transition; its outcome no longer matters.
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && cb.now().Sub(cb.transitionedAt) >= cb.config.OpenTimeout {
		cb.setStateLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state State) {
	if cb.state == state {
		return
	}
	from := cb.state
	cb.state = state
	cb.transitionedAt = cb.now()
	if state == StateHalfOpen {
		cb.successes = 0
		cb.inFlightProbes = 0
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, state)
	}
}

// Metrics returns current circuit breaker statistics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:          cb.currentStateLocked(),
		Failures:       cb.failures,
		Successes:      cb.successes,
		LastFailure:    cb.lastFailure,
		TransitionedAt: cb.transitionedAt,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State          State
	Failures       int
	Successes      int
	LastFailure    time.Time
	TransitionedAt time.Time
}
