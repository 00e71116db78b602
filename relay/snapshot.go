package relay

import (
	"sync"
	"time"

	"github.com/jonwraymond/modelrelay/cache"
	"github.com/jonwraymond/modelrelay/resilience"
)

// latencyTracker accumulates per-provider call statistics.
type latencyTracker struct {
	mu       sync.Mutex
	requests int64
	errors   int64
	total    time.Duration
}

func (t *latencyTracker) record(d time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests++
	t.total += d
	if err != nil {
		t.errors++
	}
}

func (t *latencyTracker) snapshot() (requests, errs int64, avg time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.requests > 0 {
		avg = t.total / time.Duration(t.requests)
	}
	return t.requests, t.errors, avg
}

// ProviderSnapshot is one provider's externally visible state.
type ProviderSnapshot struct {
	Provider     string        `json:"provider"`
	CircuitState string        `json:"circuit_state"`
	Failures     int           `json:"failures"`
	Requests     int64         `json:"requests"`
	Errors       int64         `json:"errors"`
	AvgLatency   time.Duration `json:"avg_latency"`
	Tokens       float64       `json:"rate_limit_tokens"`
}

// Snapshot is a point-in-time view of the manager for monitoring and
// display by an external collaborator. The relay renders nothing
// itself.
type Snapshot struct {
	Providers map[string]ProviderSnapshot `json:"providers"`
	Cache     cache.Stats                 `json:"cache"`
	Pool      *resilience.PoolMetrics     `json:"pool,omitempty"`
}

// Snapshot captures circuit state, failure counts, latency averages,
// cache counters, and pool usage.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	regs := make(map[string]*registration, len(m.providers))
	for name, reg := range m.providers {
		regs[name] = reg
	}
	m.mu.RUnlock()

	out := Snapshot{
		Providers: make(map[string]ProviderSnapshot, len(regs)),
		Cache:     m.store.Stats(),
	}

	for name, reg := range regs {
		metrics := reg.breaker.Metrics()
		requests, errs, avg := reg.latency.snapshot()

		out.Providers[name] = ProviderSnapshot{
			Provider:     name,
			CircuitState: metrics.State.String(),
			Failures:     metrics.Failures,
			Requests:     requests,
			Errors:       errs,
			AvgLatency:   avg,
			Tokens:       reg.limiter.Tokens(),
		}
	}

	if m.pool != nil {
		pm := m.pool.Metrics()
		out.Pool = &pm
	}
	return out
}
