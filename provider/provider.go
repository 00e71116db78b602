package provider

import "context"

// Adapter is the capability surface every backend implements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: all methods must honor cancellation and deadlines; a cancelled
//   Complete or StreamComplete must release its underlying connection.
// - Errors: backend failures are classified via the types in errors.go so
//   the circuit breaker can distinguish transient faults from caller and
//   configuration errors.
type Adapter interface {
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string

	// Init verifies configuration and reachability. Called once before the
	// adapter receives traffic.
	Init(ctx context.Context) error

	// ListModels returns the models the backend currently offers.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Complete executes a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// StreamComplete executes a streaming request. The returned channel is
	// finite and not restartable; it is closed when the stream ends.
	// Mid-stream errors are delivered via StreamChunk.Err.
	StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// HealthCheck probes the backend and reports reachability and latency.
	HealthCheck(ctx context.Context) HealthStatus

	// EstimateCost returns the estimated cost in USD for the given token
	// count against the given model. Returns 0 when the backend is free.
	EstimateCost(tokens int, model string) float64
}
