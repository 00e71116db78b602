package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/modelrelay/provider"
)

// Sentinel errors for cache operations.
var (
	// ErrTooLarge is returned by Put when the serialized value exceeds the
	// configured maximum entry size.
	ErrTooLarge = errors.New("cache: value exceeds max entry size")
)

// Cache stores completion responses.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; a torn
//   read must never be observed. Get returns either the old or the new
//   value for a key, never a partial one.
// - Errors: Get never errors; it reports (zero, false) on miss or expiry.
// - TTL: ttl <= 0 on Put means the value is not cached.
type Cache interface {
	// Get retrieves a cached response by key.
	Get(ctx context.Context, key string) (provider.CompletionResponse, bool)

	// Put stores a response with the given TTL.
	Put(ctx context.Context, key string, resp provider.CompletionResponse, ttl time.Duration) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Stats returns hit/miss/eviction counters.
	Stats() Stats
}

// Stats contains cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Entries   int
	SizeBytes int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
