package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/jonwraymond/modelrelay/provider"
)

// KeyerConfig configures cache key derivation.
type KeyerConfig struct {
	// ScopeToProvider pins keys to the provider that served the request.
	// Default false: the cache is global across providers, so an
	// identical request served by any backend hits the same entry.
	ScopeToProvider bool
}

// Keyer derives deterministic cache keys from the normalized fields of a
// request: model, messages, temperature, and system prompt. Volatile
// fields (timestamps, request IDs, streaming flags) never enter the key.
type Keyer struct {
	config KeyerConfig
}

// NewKeyer creates a keyer.
func NewKeyer(config KeyerConfig) *Keyer {
	return &Keyer{config: config}
}

// keyFields is serialized in declared order, which makes the JSON
// encoding canonical without any map sorting.
type keyFields struct {
	Provider    string             `json:"provider,omitempty"`
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []provider.Message `json:"messages"`
}

// Key derives the cache key for a request. providerName participates
// only when ScopeToProvider is set.
func (k *Keyer) Key(providerName string, req provider.CompletionRequest) string {
	fields := keyFields{
		Model:       req.Model,
		System:      req.System,
		Temperature: req.Temperature,
		Messages:    req.Messages,
	}
	if k.config.ScopeToProvider {
		fields.Provider = providerName
	}

	// Marshal of a struct with fixed field order cannot fail here and is
	// deterministic for identical inputs.
	canonical, _ := json.Marshal(fields)

	sum := sha256.Sum256(canonical)
	return "relay:" + hex.EncodeToString(sum[:16])
}
