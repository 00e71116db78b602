package provider

import (
	"encoding/json"
	"time"
)

// Role identifies the sender of a message in a conversation.
type Role string

// Role constants for conversation messages.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolDef describes a tool the model may invoke.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// CompletionRequest is the normalized input to an Adapter call.
//
// Treat values as immutable once handed to the relay: the cache key is
// derived from the deterministic fields (Model, Messages, Temperature,
// System), so mutating a request after submission produces undefined
// cache behavior.
type CompletionRequest struct {
	// Model is the target model identifier. Required.
	Model string `json:"model"`

	// Messages is the ordered conversation. At least one entry is required.
	Messages []Message `json:"messages"`

	// Temperature is the optional sampling temperature, 0.0 to 2.0.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens optionally caps the output length.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Stream requests a streaming response.
	Stream bool `json:"stream,omitempty"`

	// System is an optional system prompt.
	System string `json:"system,omitempty"`

	// Tools optionally declares functions the model may call.
	Tools []ToolDef `json:"tools,omitempty"`
}

// Validate checks the request invariants.
// Returns a *ValidationError describing the first violation found.
func (r *CompletionRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Reason: "model identifier is required"}
	}
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Reason: "at least one message is required"}
	}
	for i, m := range r.Messages {
		if m.Role == "" {
			return &ValidationError{Field: "messages", Reason: "message role is required", Index: i}
		}
	}
	if r.Temperature != nil {
		if t := *r.Temperature; t < 0 || t > 2 {
			return &ValidationError{Field: "temperature", Reason: "temperature must be between 0.0 and 2.0"}
		}
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return &ValidationError{Field: "max_tokens", Reason: "max_tokens must be positive"}
	}
	return nil
}

// Usage tracks token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the normalized output of an Adapter call.
type CompletionResponse struct {
	// Content is the model output text.
	Content string `json:"content"`

	// Model is the model identifier that actually served the request.
	Model string `json:"model"`

	// Provider is the name of the adapter that produced the response.
	Provider string `json:"provider"`

	// Usage contains token counters. All counters are >= 0 and
	// TotalTokens equals PromptTokens+CompletionTokens when both are known.
	Usage Usage `json:"usage"`

	// Cost is an optional monetary cost estimate in USD.
	Cost *float64 `json:"cost,omitempty"`

	// Citations optionally lists sources referenced by the response.
	Citations []string `json:"citations,omitempty"`
}

// Clone returns a copy that shares no mutable state with the receiver.
// The relay returns clones of cached responses so callers can mutate
// their copy without corrupting the cache.
func (r CompletionResponse) Clone() CompletionResponse {
	out := r
	if r.Cost != nil {
		c := *r.Cost
		out.Cost = &c
	}
	if r.Citations != nil {
		out.Citations = make([]string, len(r.Citations))
		copy(out.Citations, r.Citations)
	}
	return out
}

// Capability names a feature a model supports.
type Capability string

// Capability constants.
const (
	CapabilityChat            Capability = "chat"
	CapabilityCompletion      Capability = "completion"
	CapabilityFunctionCalling Capability = "function_calling"
	CapabilityVision          Capability = "vision"
)

// ModelInfo describes a selectable model.
type ModelInfo struct {
	// Name is the model identifier.
	Name string `json:"name"`

	// Provider is the adapter that owns the model.
	Provider string `json:"provider"`

	// ContextWindow is the maximum context length in tokens. Always > 0.
	ContextWindow int `json:"context_window"`

	// Capabilities lists what the model supports.
	Capabilities []Capability `json:"capabilities,omitempty"`

	// CostPerToken is the optional per-token cost in USD.
	CostPerToken *float64 `json:"cost_per_token,omitempty"`
}

// HasCapability reports whether the model supports the given capability.
func (m ModelInfo) HasCapability(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// HealthStatus is the result of an adapter health probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Err     error         `json:"-"`
}

// StreamChunk is one piece of a streaming completion.
// Initial connection errors are returned by StreamComplete directly;
// mid-stream errors are delivered via Err on the final chunk.
type StreamChunk struct {
	Content      string `json:"content,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
	Err          error  `json:"-"`
}
