package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the per-provider token bucket.
type RateLimiterConfig struct {
	// Rate is the refill rate in tokens per second. Zero means the bucket
	// never refills (useful for hard one-shot budgets); negative values
	// are treated as zero.
	Rate float64

	// Burst is the bucket capacity.
	// Default: 1
	Burst int

	// MaxWait is the maximum time WaitN blocks for tokens.
	// Default: 30 seconds
	MaxWait time.Duration
}

// RateLimiter implements a lazily refilled token bucket. Refill happens on
// access rather than on a background timer, so an idle limiter costs
// nothing. All accounting is serialized by a single mutex per limiter;
// tokens are never double-spent under concurrent acquisition.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewRateLimiter creates a new rate limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.Rate < 0 {
		config.Rate = 0
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 30 * time.Second
	}

	rl := &RateLimiter{
		config: config,
		tokens: float64(config.Burst),
		now:    time.Now,
	}
	rl.lastRefill = rl.now()
	return rl
}

// Allow reports whether a single request is admitted, debiting one token.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN reports whether n tokens are available, debiting them if so.
// Non-blocking; no side effect on denial.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()

	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		return true
	}
	return false
}

// Wait blocks until one token is available, the context is cancelled, or
// the MaxWait budget elapses.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks cooperatively until n tokens are available. Returns
// ErrRateLimitExceeded when MaxWait elapses first, or ctx.Err() when the
// caller's deadline or cancellation wins. The caller context always takes
// priority, so limiter waits participate in the caller's deadline budget.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	if n > rl.config.Burst {
		// Can never be satisfied.
		return ErrRateLimitExceeded
	}

	if rl.AllowN(n) {
		return nil
	}

	budget := time.NewTimer(rl.config.MaxWait)
	defer budget.Stop()

	for {
		wait := rl.nextAttemptDelay(n)

		retry := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			retry.Stop()
			return ctx.Err()
		case <-budget.C:
			retry.Stop()
			return ErrRateLimitExceeded
		case <-retry.C:
		}

		if rl.AllowN(n) {
			return nil
		}
	}
}

// nextAttemptDelay estimates how long until n tokens will be available.
// With no refill the estimate is meaningless; poll at the wait budget
// granularity instead and let the budget timer decide.
func (rl *RateLimiter) nextAttemptDelay(n int) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()

	needed := float64(n) - rl.tokens
	if needed <= 0 {
		return time.Millisecond
	}
	if rl.config.Rate <= 0 {
		return rl.config.MaxWait
	}
	return time.Duration(needed / rl.config.Rate * float64(time.Second))
}

func (rl *RateLimiter) refillLocked() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill)
	rl.lastRefill = now

	if rl.config.Rate <= 0 || elapsed <= 0 {
		return
	}

	rl.tokens += elapsed.Seconds() * rl.config.Rate
	if rl.tokens > float64(rl.config.Burst) {
		rl.tokens = float64(rl.config.Burst)
	}
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// Reset refills the bucket to capacity.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = float64(rl.config.Burst)
	rl.lastRefill = rl.now()
}
