package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultExactTTL bounds how long an exact-match entry is served.
const DefaultExactTTL = time.Hour

const exactKeyPrefix = "cencori:cache:exact:"

// KVStore is the storage surface for the exact-match tier.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisKV implements KVStore on a Redis client.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV constructs a RedisKV.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// Get fetches a value; a missing key is reported as a miss, not an error.
func (s *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.client == nil {
		return "", false, fmt.Errorf("cache: redis kv not initialized")
	}
	value, errGet := s.client.Get(ctx, key).Result()
	if errGet == redis.Nil {
		return "", false, nil
	}
	if errGet != nil {
		return "", false, errGet
	}
	return value, true, nil
}

// Set stores a value with the given TTL.
func (s *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("cache: redis kv not initialized")
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

// ExactCache is the hash-keyed response cache. Every store failure degrades
// to a miss or a no-op: caching is an optimization, never a dependency.
type ExactCache struct {
	store KVStore
	ttl   time.Duration
}

// NewExactCache constructs an ExactCache; a non-positive TTL selects the
// default.
func NewExactCache(store KVStore, ttl time.Duration) *ExactCache {
	if ttl <= 0 {
		ttl = DefaultExactTTL
	}
	return &ExactCache{store: store, ttl: ttl}
}

// Get returns the cached serialized response for the key, if present.
func (c *ExactCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.store == nil {
		return "", false
	}
	value, found, errGet := c.store.Get(ctx, exactKeyPrefix+key)
	if errGet != nil {
		log.WithError(errGet).Warn("exact cache read failed, treating as miss")
		return "", false
	}
	return value, found
}

// Set stores a serialized response under the key.
func (c *ExactCache) Set(ctx context.Context, key, response string) {
	if c == nil || c.store == nil {
		return
	}
	if errSet := c.store.Set(ctx, exactKeyPrefix+key, response, c.ttl); errSet != nil {
		log.WithError(errSet).Warn("exact cache write failed")
	}
}
