package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func healthyChecker(name string) Checker {
	return NewCheckerFunc(name, func(context.Context) Result {
		return Healthy("ok")
	})
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(healthyChecker("openai"))
	agg.Register(NewCheckerFunc("ollama", func(context.Context) Result {
		return Unhealthy("connection refused", errors.New("dial tcp: refused"))
	}))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("CheckAll() returned %d results, want 2", len(results))
	}
	if results["openai"].Status != StatusHealthy {
		t.Errorf("openai status = %v, want healthy", results["openai"].Status)
	}
	if results["ollama"].Status != StatusUnhealthy {
		t.Errorf("ollama status = %v, want unhealthy", results["ollama"].Status)
	}
	if agg.OverallStatus(results) != StatusUnhealthy {
		t.Error("overall status should be unhealthy when any backend is down")
	}
}

func TestAggregator_OverallStatus(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})

	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", map[string]Result{}, StatusHealthy},
		{"all healthy", map[string]Result{
			"a": {Status: StatusHealthy},
			"b": {Status: StatusHealthy},
		}, StatusHealthy},
		{"one degraded", map[string]Result{
			"a": {Status: StatusHealthy},
			"b": {Status: StatusDegraded},
		}, StatusDegraded},
		{"degraded and unhealthy", map[string]Result{
			"a": {Status: StatusDegraded},
			"b": {Status: StatusUnhealthy},
		}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := agg.OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_CheckByName(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(healthyChecker("openai"))

	result, err := agg.Check(context.Background(), "openai")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Status != StatusHealthy {
		t.Errorf("status = %v, want healthy", result.Status)
	}

	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check() error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_Unregister(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(healthyChecker("openai"))
	agg.Register(healthyChecker("ollama"))

	agg.Unregister("openai")

	names := agg.CheckerNames()
	if len(names) != 1 || names[0] != "ollama" {
		t.Errorf("CheckerNames() = %v, want [ollama]", names)
	}
}

func TestAggregator_SlowCheckerTimesOut(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 50 * time.Millisecond})
	agg.Register(NewCheckerFunc("slow", func(ctx context.Context) Result {
		select {
		case <-time.After(5 * time.Second):
			return Healthy("ok")
		case <-ctx.Done():
			return Unhealthy("canceled", ctx.Err())
		}
	}))

	results := agg.CheckAll(context.Background())
	if results["slow"].Status != StatusUnhealthy {
		t.Errorf("slow checker status = %v, want unhealthy", results["slow"].Status)
	}
}

func TestStatus_String(t *testing.T) {
	if StatusHealthy.String() != "healthy" ||
		StatusDegraded.String() != "degraded" ||
		StatusUnhealthy.String() != "unhealthy" {
		t.Error("unexpected status string")
	}
	if Status(42).String() != "unknown" {
		t.Error("out-of-range status should be unknown")
	}
}
