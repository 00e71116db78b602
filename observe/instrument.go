package observe

import (
	"context"
	"time"
)

// CallFunc is one provider call to be instrumented.
type CallFunc func(ctx context.Context) error

// Instrumenter wraps provider calls with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Observe is safe for concurrent use.
//   - Context: the span context is propagated into the wrapped call.
//   - Errors: errors from the wrapped call are recorded and returned unchanged.
type Instrumenter struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewInstrumenter creates an Instrumenter from discrete components.
func NewInstrumenter(tracer Tracer, metrics Metrics, logger Logger) *Instrumenter {
	return &Instrumenter{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// InstrumenterFromObserver builds an Instrumenter from an Observer.
func InstrumenterFromObserver(obs Observer) (*Instrumenter, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewInstrumenter(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// NoopInstrumenter returns an Instrumenter that records nothing.
func NoopInstrumenter() *Instrumenter {
	return NewInstrumenter(NewNoopTracer(), NoopMetrics(), NoopLogger())
}

// Metrics exposes the underlying metrics recorder for direct use.
func (i *Instrumenter) Metrics() Metrics { return i.metrics }

// Logger exposes the underlying logger for direct use.
func (i *Instrumenter) Logger() Logger { return i.logger }

// Observe runs fn inside a span and records its duration and outcome.
func (i *Instrumenter) Observe(ctx context.Context, meta CallMeta, fn CallFunc) error {
	ctx, span := i.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	i.tracer.EndSpan(span, err)
	i.metrics.RecordCall(ctx, meta, duration, err)

	logger := i.logger.WithCall(meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Error(ctx, "provider call failed", fields...)
	} else {
		logger.Debug(ctx, "provider call completed", fields...)
	}

	return err
}
