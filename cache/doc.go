// Package cache memoizes completion responses keyed by a deterministic
// hash of the normalized request. Entries are evicted in LRU order when
// the entry ceiling is reached and expire lazily by TTL at lookup time.
// Large values are transparently gzip-compressed; values above a maximum
// size are never cached.
package cache
