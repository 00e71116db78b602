package provider

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// Factory constructs an Adapter from a resolved configuration.
type Factory func(cfg Config) (Adapter, error)

// Config is the resolved configuration handed to an adapter factory.
// Credential values arrive already resolved by an external secret
// collaborator; this package never reads secrets from files or the
// environment itself.
type Config struct {
	// BaseURL overrides the backend endpoint. Empty uses the adapter default.
	BaseURL string

	// Credential is the resolved credential string (API key, token).
	// Empty for unauthenticated backends.
	Credential string

	// HTTPClient is the shared pooled client. Nil uses http.DefaultClient.
	HTTPClient HTTPDoer
}

// HTTPDoer is the subset of *http.Client the adapters need. Satisfied by
// *http.Client and by the resilience connection pool.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an adapter factory under the given name. Later
// registrations replace earlier ones.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New constructs an adapter by registered name.
func New(name string, cfg Config) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provider: unknown adapter %q (available: %v)", name, Registered())
	}
	return factory(cfg)
}

// Registered returns the sorted names of all registered adapter factories.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
