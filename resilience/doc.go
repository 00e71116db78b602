// Package resilience provides the failure-isolation primitives wrapped
// around every backend call: a per-provider circuit breaker, a
// per-provider token-bucket rate limiter, a shared outbound connection
// pool, and retry/deadline helpers.
//
// # Patterns
//
//   - Circuit Breaker: stops traffic to a failing provider after a
//     threshold of consecutive backend failures, probes recovery through a
//     half-open state, and closes again after enough probe successes.
//
//   - Rate Limiter: token bucket with lazy refill; non-blocking Allow and
//     deadline-budgeted Wait.
//
//   - Pool: bounds total in-flight requests and per-host connections for
//     all adapters sharing one process.
//
//   - Retry: optional per-attempt backoff for transient failures.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    OpenTimeout:      time.Minute,
//	    IsFailure:        provider.IsTransient,
//	})
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	    Rate:  2,  // tokens per second
//	    Burst: 10,
//	})
//
//	pool := resilience.NewPool(resilience.PoolConfig{MaxPerHost: 8})
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    if err := rl.Wait(ctx); err != nil {
//	        return err
//	    }
//	    return callBackend(ctx, pool.Client())
//	})
//
// Each provider gets its own breaker and limiter instance; the pool is
// shared process-wide. The relay package owns this composition.
package resilience
