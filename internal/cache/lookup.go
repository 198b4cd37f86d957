package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const lookupShards = 16

// lookupEntry pairs a value with its expiry.
type lookupEntry[V any] struct {
	value     V
	expiresAt time.Time
}

type lookupShard[V any] struct {
	mu      sync.RWMutex
	entries map[string]lookupEntry[V]
}

// LookupCache is a small sharded TTL map for hot-path lookups (provider
// credentials, project rows). It is safe for concurrent readers and
// writers and is passed by reference rather than held as package state.
type LookupCache[V any] struct {
	shards [lookupShards]*lookupShard[V]
	ttl    time.Duration
}

// NewLookupCache constructs a LookupCache with the given entry TTL.
func NewLookupCache[V any](ttl time.Duration) *LookupCache[V] {
	c := &LookupCache[V]{ttl: ttl}
	for i := range c.shards {
		c.shards[i] = &lookupShard[V]{entries: make(map[string]lookupEntry[V])}
	}
	return c
}

func (c *LookupCache[V]) shard(key string) *lookupShard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%lookupShards]
}

// Get returns the cached value when present and unexpired.
func (c *LookupCache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	s := c.shard(key)
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return zero, false
	}
	return entry.value, true
}

// Set stores a value under the cache TTL.
func (c *LookupCache[V]) Set(key string, value V) {
	if c == nil {
		return
	}
	s := c.shard(key)
	s.mu.Lock()
	s.entries[key] = lookupEntry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
	s.mu.Unlock()
}

// Delete drops a key, if present.
func (c *LookupCache[V]) Delete(key string) {
	if c == nil {
		return
	}
	s := c.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}
