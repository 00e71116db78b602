package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records relay call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records a provider call with duration and error status.
	RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordCacheLookup records a cache hit or miss.
	RecordCacheLookup(ctx context.Context, hit bool)

	// RecordFallbackDepth records how many providers a request tried
	// before one succeeded.
	RecordFallbackDepth(ctx context.Context, depth int)

	// RecordTokens records token consumption for a completed call.
	RecordTokens(ctx context.Context, meta CallMeta, promptTokens, completionTokens int)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter         metric.Meter
	callCount     metric.Int64Counter
	errorCount    metric.Int64Counter
	durationHist  metric.Float64Histogram
	cacheLookups  metric.Int64Counter
	fallbackDepth metric.Int64Histogram
	tokenCount    metric.Int64Counter
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	callCount, err := meter.Int64Counter(
		"relay.requests.total",
		metric.WithDescription("Total number of provider calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"relay.requests.errors",
		metric.WithDescription("Total number of failed provider calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"relay.request.duration_ms",
		metric.WithDescription("Provider call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"relay.cache.lookups",
		metric.WithDescription("Cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	fallbackDepth, err := meter.Int64Histogram(
		"relay.fallback.depth",
		metric.WithDescription("Providers tried before a request succeeded"),
		metric.WithUnit("{provider}"),
	)
	if err != nil {
		return nil, err
	}

	tokenCount, err := meter.Int64Counter(
		"relay.tokens.total",
		metric.WithDescription("Tokens consumed by completed calls"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:         meter,
		callCount:     callCount,
		errorCount:    errorCount,
		durationHist:  durationHist,
		cacheLookups:  cacheLookups,
		fallbackDepth: fallbackDepth,
		tokenCount:    tokenCount,
	}, nil
}

func (m *metricsImpl) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("relay.provider", meta.Provider),
		attribute.String("relay.operation", meta.Operation),
	}
	if meta.Model != "" {
		attrs = append(attrs, attribute.String("relay.model", meta.Model))
	}

	opt := metric.WithAttributes(attrs...)

	m.callCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("relay.cache.outcome", outcome)))
}

func (m *metricsImpl) RecordFallbackDepth(ctx context.Context, depth int) {
	m.fallbackDepth.Record(ctx, int64(depth))
}

func (m *metricsImpl) RecordTokens(ctx context.Context, meta CallMeta, promptTokens, completionTokens int) {
	base := []attribute.KeyValue{
		attribute.String("relay.provider", meta.Provider),
		attribute.String("relay.model", meta.Model),
	}
	m.tokenCount.Add(ctx, int64(promptTokens),
		metric.WithAttributes(append(base, attribute.String("relay.token.kind", "prompt"))...))
	m.tokenCount.Add(ctx, int64(completionTokens),
		metric.WithAttributes(append(base, attribute.String("relay.token.kind", "completion"))...))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (noopMetrics) RecordCall(context.Context, CallMeta, time.Duration, error) {}
func (noopMetrics) RecordCacheLookup(context.Context, bool)                    {}
func (noopMetrics) RecordFallbackDepth(context.Context, int)                   {}
func (noopMetrics) RecordTokens(context.Context, CallMeta, int, int)           {}

// NoopMetrics returns a metrics implementation that discards everything.
func NoopMetrics() Metrics { return noopMetrics{} }
