package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/modelrelay/provider"
)

// AdapterCheckerConfig configures latency grading for adapter probes.
type AdapterCheckerConfig struct {
	// DegradedLatency is the probe latency above which a responding
	// backend is reported as degraded rather than healthy.
	// Default: 2 seconds
	DegradedLatency time.Duration

	// Timeout bounds each probe.
	// Default: 5 seconds
	Timeout time.Duration
}

// AdapterChecker probes a provider adapter and grades the result.
type AdapterChecker struct {
	adapter provider.Adapter
	config  AdapterCheckerConfig
}

// NewAdapterChecker wraps an adapter in a Checker.
func NewAdapterChecker(adapter provider.Adapter, config AdapterCheckerConfig) *AdapterChecker {
	// Apply defaults
	if config.DegradedLatency <= 0 {
		config.DegradedLatency = 2 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &AdapterChecker{adapter: adapter, config: config}
}

// Name returns the adapter's provider name.
func (c *AdapterChecker) Name() string { return c.adapter.Name() }

// Check probes the adapter. A backend that answers but above the
// degraded latency threshold is reported degraded, not unhealthy.
func (c *AdapterChecker) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	status := c.adapter.HealthCheck(ctx)

	result := Result{
		Latency:   status.Latency,
		Timestamp: time.Now(),
	}
	switch {
	case !status.Healthy:
		result.Status = StatusUnhealthy
		result.Message = "backend unreachable"
		result.Error = status.Err
	case status.Latency > c.config.DegradedLatency:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("probe latency %s exceeds %s", status.Latency, c.config.DegradedLatency)
	default:
		result.Status = StatusHealthy
		result.Message = "ok"
	}
	return result
}

var _ Checker = (*AdapterChecker)(nil)
