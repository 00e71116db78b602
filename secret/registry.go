package secret

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SourceFactory creates a Source from configuration.
type SourceFactory func(cfg map[string]any) (Source, error)

// Registry manages credential source factories.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]SourceFactory
}

// NewRegistry creates a source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]SourceFactory)}
}

// Register adds a source factory. Duplicate names error.
func (r *Registry) Register(name string, factory SourceFactory) error {
	if strings.TrimSpace(name) == "" || factory == nil {
		return errors.New("secret: invalid source registration")
	}
	name = strings.TrimSpace(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("secret: source %q already registered", name)
	}
	r.sources[name] = factory
	return nil
}

// Create instantiates a source by name.
func (r *Registry) Create(name string, cfg map[string]any) (Source, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("secret: source name is required")
	}

	r.mu.RLock()
	factory, ok := r.sources[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("secret: source %q is not registered", name)
	}

	return factory(cfg)
}

// List returns registered source names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global registry for credential sources.
var DefaultRegistry = NewRegistry()

func init() {
	_ = DefaultRegistry.Register("env", func(map[string]any) (Source, error) {
		return EnvSource{}, nil
	})
}
