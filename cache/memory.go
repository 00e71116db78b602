package cache

import (
	"bytes"
	"compress/gzip"
	"container/list"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/jonwraymond/modelrelay/provider"
)

// MemoryConfig configures the in-memory cache.
type MemoryConfig struct {
	// MaxEntries is the LRU entry ceiling.
	// Default: 1000
	MaxEntries int

	// CompressThreshold is the serialized size above which values are
	// gzip-compressed.
	// Default: 1 KiB
	CompressThreshold int

	// MaxEntrySize is the serialized size above which values are never
	// cached.
	// Default: 1 MiB
	MaxEntrySize int
}

// MemoryCache is an LRU + TTL in-memory cache. Expiry is checked lazily
// at lookup; there is no background sweeper. All access is serialized by
// one mutex, which also protects the LRU ordering.
type MemoryCache struct {
	config MemoryConfig

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used
	stats   Stats

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

type memoryEntry struct {
	key        string
	data       []byte
	compressed bool
	insertedAt time.Time
	ttl        time.Duration
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(config MemoryConfig) *MemoryCache {
	// Apply defaults
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	if config.CompressThreshold <= 0 {
		config.CompressThreshold = 1 << 10
	}
	if config.MaxEntrySize <= 0 {
		config.MaxEntrySize = 1 << 20
	}

	return &MemoryCache{
		config:  config,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// Get retrieves a cached response. Expired entries are removed, not
// returned. A hit refreshes the entry's LRU position.
func (c *MemoryCache) Get(_ context.Context, key string) (provider.CompletionResponse, bool) {
	c.mu.Lock()

	elem, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		c.mu.Unlock()
		return provider.CompletionResponse{}, false
	}

	entry := elem.Value.(*memoryEntry)
	if c.now().Sub(entry.insertedAt) > entry.ttl {
		c.removeLocked(elem)
		c.stats.Expired++
		c.stats.Misses++
		c.mu.Unlock()
		return provider.CompletionResponse{}, false
	}

	c.lru.MoveToFront(elem)
	c.stats.Hits++

	// Copy the bytes under the lock; decode outside it. Writers replace
	// the slice wholesale, so a reader sees the old or the new value,
	// never a torn one.
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	compressed := entry.compressed
	c.mu.Unlock()

	resp, err := decode(data, compressed)
	if err != nil {
		// Corrupt entry; drop it and report a miss.
		_ = c.Delete(context.Background(), key)
		return provider.CompletionResponse{}, false
	}
	return resp, true
}

// Put stores a response. TTL <= 0 means no caching. Values above
// MaxEntrySize return ErrTooLarge and are not stored.
func (c *MemoryCache) Put(_ context.Context, key string, resp provider.CompletionResponse, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if len(raw) > c.config.MaxEntrySize {
		return ErrTooLarge
	}

	data := raw
	compressed := false
	if len(raw) > c.config.CompressThreshold {
		if packed, ok := compress(raw); ok {
			data = packed
			compressed = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		c.stats.SizeBytes += int64(len(data) - len(entry.data))
		entry.data = data
		entry.compressed = compressed
		entry.insertedAt = c.now()
		entry.ttl = ttl
		c.lru.MoveToFront(elem)
		return nil
	}

	elem := c.lru.PushFront(&memoryEntry{
		key:        key,
		data:       data,
		compressed: compressed,
		insertedAt: c.now(),
		ttl:        ttl,
	})
	c.entries[key] = elem
	c.stats.SizeBytes += int64(len(data))

	for c.lru.Len() > c.config.MaxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.stats.Evictions++
	}

	return nil
}

// Delete removes a cached value. Idempotent - no error on miss.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = c.lru.Len()
	return stats
}

func (c *MemoryCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	c.lru.Remove(elem)
	delete(c.entries, entry.key)
	c.stats.SizeBytes -= int64(len(entry.data))
}

func compress(raw []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	// Keep the smaller representation.
	if buf.Len() >= len(raw) {
		return nil, false
	}
	return buf.Bytes(), true
}

func decode(data []byte, compressed bool) (provider.CompletionResponse, error) {
	var resp provider.CompletionResponse

	if compressed {
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return resp, err
		}
		data, err = io.ReadAll(r)
		if cerr := r.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return resp, err
		}
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
