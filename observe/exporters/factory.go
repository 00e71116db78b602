// Package exporters builds the OpenTelemetry span exporters and metric
// readers the relay's Observer wires into its providers.
package exporters

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options carries construction inputs shared by the trace and metric
// factories.
type Options struct {
	// Endpoint is the OTLP collector address (host:port). Empty falls
	// back to the standard OTEL_EXPORTER_OTLP_* environment variables.
	Endpoint string

	// Writer receives stdout-exporter output.
	// Default: os.Stdout
	Writer io.Writer
}

func (o Options) writer() io.Writer {
	if o.Writer != nil {
		return o.Writer
	}
	return os.Stdout
}

// resolveEndpoint returns the explicit endpoint when set, otherwise the
// first non-empty value among the named environment variables.
func resolveEndpoint(explicit string, envVars ...string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range envVars {
		if ep := os.Getenv(name); ep != "" {
			return ep
		}
	}
	return ""
}

// NewTraceExporter creates a span exporter.
// Supported kinds: stdout, otlp, jaeger (OTLP wire), none.
func NewTraceExporter(ctx context.Context, kind string, opts Options) (sdktrace.SpanExporter, error) {
	switch kind {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(opts.writer()))

	case "otlp":
		endpoint := resolveEndpoint(opts.Endpoint,
			"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("exporters: otlp trace endpoint not configured")
		}
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint))

	case "jaeger":
		// Jaeger ingests OTLP natively.
		endpoint := resolveEndpoint(opts.Endpoint, "OTEL_EXPORTER_JAEGER_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("exporters: jaeger endpoint not configured")
		}
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint))

	case "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))

	default:
		return nil, fmt.Errorf("exporters: unknown trace exporter %q", kind)
	}
}

// NewMetricReader creates a metric reader.
// Supported kinds: stdout, otlp, prometheus, none.
func NewMetricReader(ctx context.Context, kind string, opts Options) (sdkmetric.Reader, error) {
	switch kind {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.writer()))
		if err != nil {
			return nil, fmt.Errorf("exporters: stdout metrics: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "otlp":
		endpoint := resolveEndpoint(opts.Endpoint,
			"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("exporters: otlp metrics endpoint not configured")
		}
		exp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(endpoint))
		if err != nil {
			return nil, fmt.Errorf("exporters: otlp metrics: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "prometheus":
		exp, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("exporters: prometheus: %w", err)
		}
		return exp, nil

	case "none", "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	default:
		return nil, fmt.Errorf("exporters: unknown metric reader %q", kind)
	}
}
