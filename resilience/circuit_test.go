package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func failOnce(cb *CircuitBreaker) error {
	return cb.Execute(context.Background(), func(ctx context.Context) error {
		return errBackend
	})
}

func succeedOnce(cb *CircuitBreaker) error {
	return cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.OpenTimeout != 60*time.Second {
		t.Errorf("OpenTimeout = %v, want 60s", cb.config.OpenTimeout)
	}
	if cb.config.SuccessThreshold != 3 {
		t.Errorf("SuccessThreshold = %d, want 3", cb.config.SuccessThreshold)
	}
	if cb.config.FailureWindow != 300*time.Second {
		t.Errorf("FailureWindow = %v, want 300s", cb.config.FailureWindow)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensExactlyAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 5})

	for i := 0; i < 4; i++ {
		_ = failOnce(cb)
		if cb.State() != StateClosed {
			t.Fatalf("after %d failures, state = %v, want closed", i+1, cb.State())
		}
	}

	_ = failOnce(cb)
	if cb.State() != StateOpen {
		t.Errorf("after 5 failures, state = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_OpenShortCircuits(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	_ = failOnce(cb)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("operation invoked while circuit open")
		return nil
	})
	if err != ErrCircuitOpen {
		t.Errorf("Execute() while open = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_SuccessInClosedDoesNotResetWindowedFailures(t *testing.T) {
	// Failures only decay via the failure window, not per success; two
	// failures inside the window still count toward the threshold.
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	_ = failOnce(cb)
	_ = succeedOnce(cb)
	_ = failOnce(cb)
	_ = failOnce(cb)

	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after 3 windowed failures", cb.State())
	}
}

func TestCircuitBreaker_FailureWindowResetsStaleCount(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		FailureWindow:    300 * time.Second,
	})
	cb.now = func() time.Time { return now }

	_ = failOnce(cb)

	// An old incident beyond the window is forgotten.
	now = now.Add(301 * time.Second)

	// One stale + one fresh failure must not open a threshold-2 breaker.
	_ = failOnce(cb)
	if got := cb.Metrics().Failures; got != 1 {
		t.Errorf("failures after window reset = %d, want 1", got)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      60 * time.Second,
	})
	cb.now = func() time.Time { return now }

	_ = failOnce(cb)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	now = now.Add(59 * time.Second)
	if cb.State() != StateOpen {
		t.Errorf("state before timeout = %v, want open", cb.State())
	}

	now = now.Add(2 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Errorf("state after timeout = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		MaxProbes:        1,
	})
	cb.now = func() time.Time { return now }

	_ = failOnce(cb)
	now = now.Add(2 * time.Second)

	// Hold a probe slot open and verify a second probe is rejected.
	release := make(chan struct{})
	probeDone := make(chan error, 1)
	go func() {
		probeDone <- cb.Execute(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		})
	}()

	// Wait for the probe to be admitted.
	deadline := time.Now().Add(time.Second)
	for {
		cb.mu.Lock()
		inFlight := cb.inFlightProbes
		cb.mu.Unlock()
		if inFlight == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("probe was never admitted")
		}
		time.Sleep(time.Millisecond)
	}

	if err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil }); err != ErrCircuitOpen {
		t.Errorf("second concurrent probe error = %v, want ErrCircuitOpen", err)
	}

	close(release)
	if err := <-probeDone; err != nil {
		t.Errorf("probe error = %v", err)
	}
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		SuccessThreshold: 3,
	})
	cb.now = func() time.Time { return now }

	_ = failOnce(cb)
	now = now.Add(2 * time.Second)

	for i := 0; i < 2; i++ {
		if err := succeedOnce(cb); err != nil {
			t.Fatalf("probe %d error = %v", i+1, err)
		}
		if cb.State() != StateHalfOpen {
			t.Fatalf("after %d successes, state = %v, want half-open", i+1, cb.State())
		}
	}

	if err := succeedOnce(cb); err != nil {
		t.Fatalf("final probe error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("after 3 successes, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFilteredErrorIsNotASuccess(t *testing.T) {
	errCredential := errors.New("credential rejected")

	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		SuccessThreshold: 3,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, errCredential)
		},
	})
	cb.now = func() time.Time { return now }

	_ = failOnce(cb)
	now = now.Add(2 * time.Second)

	// Probes that return a filtered error must not accumulate toward the
	// success threshold, and the circuit must stay half-open.
	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return errCredential
		})
		if !errors.Is(err, errCredential) {
			t.Fatalf("probe %d error = %v, want errCredential", i+1, err)
		}
		if cb.State() != StateHalfOpen {
			t.Fatalf("after %d filtered probes, state = %v, want half-open", i+1, cb.State())
		}
	}
	if got := cb.Metrics().Successes; got != 0 {
		t.Errorf("successes after filtered probes = %d, want 0", got)
	}

	// Genuine successes still close the circuit, and the probe slots
	// consumed by filtered errors have been returned.
	for i := 0; i < 3; i++ {
		if err := succeedOnce(cb); err != nil {
			t.Fatalf("probe %d error = %v", i+1, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after 3 real successes", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		SuccessThreshold: 3,
	})
	cb.now = func() time.Time { return now }

	_ = failOnce(cb)
	now = now.Add(2 * time.Second)

	_ = succeedOnce(cb)
	_ = failOnce(cb)

	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after half-open failure", cb.State())
	}
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	configErr := errors.New("bad credentials")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, configErr)
		},
	})

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return configErr
		})
		if err != configErr {
			t.Fatalf("Execute() error = %v, want configErr", err)
		}
	}

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed (filtered errors must not count)", cb.State())
	}
	if got := cb.Metrics().Failures; got != 0 {
		t.Errorf("failures = %d, want 0", got)
	}
}

func TestCircuitBreaker_ForceControls(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	cb.ForceOpen()
	if cb.State() != StateOpen {
		t.Fatalf("state after ForceOpen = %v, want open", cb.State())
	}

	cb.ForceClose()
	if cb.State() != StateClosed {
		t.Fatalf("state after ForceClose = %v, want closed", cb.State())
	}

	_ = failOnce(cb)
	cb.Reset()
	m := cb.Metrics()
	if m.Failures != 0 || m.State != StateClosed {
		t.Errorf("after Reset: failures = %d state = %v, want 0/closed", m.Failures, m.State)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		SuccessThreshold: 1,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})
	cb.now = func() time.Time { return now }

	_ = failOnce(cb)
	now = now.Add(2 * time.Second)
	_ = succeedOnce(cb)

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
