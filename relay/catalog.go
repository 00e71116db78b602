package relay

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/modelrelay/provider"
)

// catalog caches per-provider model lists with a TTL. Concurrent
// fetches for the same provider collapse into one backend call.
type catalog struct {
	ttl     time.Duration
	sfGroup singleflight.Group

	mu      sync.Mutex
	entries map[string]catalogEntry

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

type catalogEntry struct {
	models    []provider.ModelInfo
	fetchedAt time.Time
}

func newCatalog(ttl time.Duration) *catalog {
	return &catalog{
		ttl:     ttl,
		entries: make(map[string]catalogEntry),
		now:     time.Now,
	}
}

// get returns the cached list when fresh, otherwise fetches and stores.
func (c *catalog) get(ctx context.Context, name string, fetch func(context.Context) ([]provider.ModelInfo, error)) ([]provider.ModelInfo, error) {
	if models, ok := c.fresh(name); ok {
		return models, nil
	}

	fetched, err, _ := c.sfGroup.Do(name, func() (any, error) {
		// A concurrent caller may have refreshed while we waited.
		if models, ok := c.fresh(name); ok {
			return models, nil
		}

		models, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[name] = catalogEntry{models: models, fetchedAt: c.now()}
		c.mu.Unlock()

		return models, nil
	})
	if err != nil {
		return nil, err
	}
	return copyModels(fetched.([]provider.ModelInfo)), nil
}

// fresh returns a copy of the cached list when it is inside its TTL.
func (c *catalog) fresh(name string) ([]provider.ModelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok || c.now().Sub(entry.fetchedAt) > c.ttl {
		return nil, false
	}
	return copyModels(entry.models), true
}

// invalidate discards one provider's cached list.
func (c *catalog) invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

func copyModels(models []provider.ModelInfo) []provider.ModelInfo {
	out := make([]provider.ModelInfo, len(models))
	copy(out, models)
	return out
}
