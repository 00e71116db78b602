package exporters

import (
	"bytes"
	"context"
	"testing"
)

func TestNewTraceExporter(t *testing.T) {
	ctx := context.Background()

	t.Run("stdout writes to the injected writer", func(t *testing.T) {
		var buf bytes.Buffer
		exp, err := NewTraceExporter(ctx, "stdout", Options{Writer: &buf})
		if err != nil {
			t.Fatalf("NewTraceExporter() error = %v", err)
		}
		if exp == nil {
			t.Fatal("exporter is nil")
		}
		_ = exp.Shutdown(ctx)
	})

	t.Run("none", func(t *testing.T) {
		exp, err := NewTraceExporter(ctx, "none", Options{})
		if err != nil {
			t.Fatalf("NewTraceExporter() error = %v", err)
		}
		_ = exp.Shutdown(ctx)
	})

	t.Run("otlp with explicit endpoint", func(t *testing.T) {
		exp, err := NewTraceExporter(ctx, "otlp", Options{Endpoint: "localhost:4317"})
		if err != nil {
			t.Fatalf("NewTraceExporter() error = %v", err)
		}
		_ = exp.Shutdown(ctx)
	})

	t.Run("otlp without endpoint", func(t *testing.T) {
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
		t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
		if _, err := NewTraceExporter(ctx, "otlp", Options{}); err == nil {
			t.Error("otlp without endpoint should error")
		}
	})

	t.Run("jaeger without endpoint", func(t *testing.T) {
		t.Setenv("OTEL_EXPORTER_JAEGER_ENDPOINT", "")
		if _, err := NewTraceExporter(ctx, "jaeger", Options{}); err == nil {
			t.Error("jaeger without endpoint should error")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewTraceExporter(ctx, "zipkin", Options{}); err == nil {
			t.Error("unknown exporter should error")
		}
	})
}

func TestNewMetricReader(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		reader, err := NewMetricReader(ctx, "none", Options{})
		if err != nil {
			t.Fatalf("NewMetricReader() error = %v", err)
		}
		if reader == nil {
			t.Fatal("reader is nil")
		}
		_ = reader.Shutdown(ctx)
	})

	t.Run("prometheus", func(t *testing.T) {
		reader, err := NewMetricReader(ctx, "prometheus", Options{})
		if err != nil {
			t.Fatalf("NewMetricReader() error = %v", err)
		}
		_ = reader.Shutdown(ctx)
	})

	t.Run("otlp without endpoint", func(t *testing.T) {
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
		t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
		if _, err := NewMetricReader(ctx, "otlp", Options{}); err == nil {
			t.Error("otlp without endpoint should error")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewMetricReader(ctx, "statsd", Options{}); err == nil {
			t.Error("unknown reader should error")
		}
	})
}

func TestResolveEndpoint(t *testing.T) {
	t.Setenv("EXPORTERS_TEST_EP", "env-host:4317")

	if got := resolveEndpoint("explicit:4317", "EXPORTERS_TEST_EP"); got != "explicit:4317" {
		t.Errorf("resolveEndpoint() = %q, want the explicit value", got)
	}
	if got := resolveEndpoint("", "EXPORTERS_TEST_EP"); got != "env-host:4317" {
		t.Errorf("resolveEndpoint() = %q, want the env fallback", got)
	}
	if got := resolveEndpoint("", "EXPORTERS_TEST_UNSET"); got != "" {
		t.Errorf("resolveEndpoint() = %q, want empty", got)
	}
}
