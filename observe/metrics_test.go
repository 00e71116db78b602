package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader
}

func TestMetrics_RecordCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := CallMeta{Provider: "openai", Model: "gpt-4o-mini", Operation: "complete"}

	m.RecordCall(ctx, meta, 120*time.Millisecond, nil)
	m.RecordCall(ctx, meta, 80*time.Millisecond, errors.New("boom"))

	rm := collectMetrics(t, reader)

	total, ok := findMetric(rm, "relay.requests.total")
	if !ok {
		t.Fatal("relay.requests.total not recorded")
	}
	sum := total.Data.(metricdata.Sum[int64])
	var calls int64
	for _, dp := range sum.DataPoints {
		calls += dp.Value
	}
	if calls != 2 {
		t.Errorf("total calls = %d, want 2", calls)
	}

	errorsMetric, ok := findMetric(rm, "relay.requests.errors")
	if !ok {
		t.Fatal("relay.requests.errors not recorded")
	}
	errSum := errorsMetric.Data.(metricdata.Sum[int64])
	var errCount int64
	for _, dp := range errSum.DataPoints {
		errCount += dp.Value
	}
	if errCount != 1 {
		t.Errorf("error count = %d, want 1", errCount)
	}

	if _, ok := findMetric(rm, "relay.request.duration_ms"); !ok {
		t.Error("relay.request.duration_ms not recorded")
	}
}

func TestMetrics_RecordCacheLookup(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)

	rm := collectMetrics(t, reader)
	lookups, ok := findMetric(rm, "relay.cache.lookups")
	if !ok {
		t.Fatal("relay.cache.lookups not recorded")
	}

	sum := lookups.Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("lookup count = %d, want 3", total)
	}
	// Hit and miss land on separate attribute sets.
	if len(sum.DataPoints) != 2 {
		t.Errorf("datapoint sets = %d, want 2", len(sum.DataPoints))
	}
}

func TestMetrics_RecordFallbackDepth(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordFallbackDepth(context.Background(), 3)

	rm := collectMetrics(t, reader)
	depth, ok := findMetric(rm, "relay.fallback.depth")
	if !ok {
		t.Fatal("relay.fallback.depth not recorded")
	}
	hist := depth.Data.(metricdata.Histogram[int64])
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Sum != 3 {
		t.Errorf("unexpected fallback depth datapoints: %+v", hist.DataPoints)
	}
}

func TestMetrics_RecordTokens(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := CallMeta{Provider: "openai", Model: "gpt-4o-mini", Operation: "complete"}

	m.RecordTokens(context.Background(), meta, 100, 40)

	rm := collectMetrics(t, reader)
	tokens, ok := findMetric(rm, "relay.tokens.total")
	if !ok {
		t.Fatal("relay.tokens.total not recorded")
	}
	sum := tokens.Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 140 {
		t.Errorf("token total = %d, want 140", total)
	}
}
