package health

import (
	"context"
	"sync"
	"time"
)

// MonitorConfig configures background health monitoring.
type MonitorConfig struct {
	// Interval between aggregate probes.
	// Default: 30 seconds
	Interval time.Duration
}

// Monitor runs an aggregator on an interval and retains the latest
// results, so callers can read health without paying for a probe.
type Monitor struct {
	aggregator *Aggregator
	config     MonitorConfig

	mu   sync.RWMutex
	last map[string]Result

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMonitor creates a monitor over the given aggregator.
func NewMonitor(aggregator *Aggregator, config MonitorConfig) *Monitor {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}

	return &Monitor{
		aggregator: aggregator,
		config:     config,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start probes once immediately, then on every interval tick until
// Stop is called or ctx is canceled.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)

		m.probe(ctx)

		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.probe(ctx)
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts monitoring and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// Last returns the most recent result set. Nil before the first probe
// completes.
func (m *Monitor) Last() map[string]Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.last == nil {
		return nil
	}
	out := make(map[string]Result, len(m.last))
	for k, v := range m.last {
		out[k] = v
	}
	return out
}

// OverallStatus folds the latest results into one status.
func (m *Monitor) OverallStatus() Status {
	return m.aggregator.OverallStatus(m.Last())
}

func (m *Monitor) probe(ctx context.Context) {
	results := m.aggregator.CheckAll(ctx)

	m.mu.Lock()
	m.last = results
	m.mu.Unlock()
}
