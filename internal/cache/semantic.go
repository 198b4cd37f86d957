package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultSimilarityThreshold accepts only near-duplicate prompts.
const DefaultSimilarityThreshold = 0.95

const (
	semanticKeyPrefix = "cencori:cache:sem:"
	semanticEntryTTL  = 7 * 24 * time.Hour
	semanticScanCount = 200
)

// Entry is a stored semantic-tier record.
type Entry struct {
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Embedding []float64 `json:"embedding"`
}

// VectorStore persists embeddings and scans them for nearest-neighbor
// lookups.
type VectorStore interface {
	Upsert(ctx context.Context, key string, entry Entry) error
	Scan(ctx context.Context, fn func(entry Entry) bool) error
}

// RedisVectorStore implements VectorStore on Redis string values.
type RedisVectorStore struct {
	client *redis.Client
}

// NewRedisVectorStore constructs a RedisVectorStore.
func NewRedisVectorStore(client *redis.Client) *RedisVectorStore {
	return &RedisVectorStore{client: client}
}

// Upsert stores the entry under the prompt key, replacing any earlier entry
// for the same literal prompt.
func (s *RedisVectorStore) Upsert(ctx context.Context, key string, entry Entry) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("cache: vector store not initialized")
	}
	payload, errMarshal := json.Marshal(entry)
	if errMarshal != nil {
		return fmt.Errorf("cache: marshal semantic entry: %w", errMarshal)
	}
	return s.client.Set(ctx, semanticKeyPrefix+key, payload, semanticEntryTTL).Err()
}

// Scan walks every stored entry until fn returns false.
func (s *RedisVectorStore) Scan(ctx context.Context, fn func(entry Entry) bool) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("cache: vector store not initialized")
	}
	var cursor uint64
	for {
		keys, next, errScan := s.client.Scan(ctx, cursor, semanticKeyPrefix+"*", semanticScanCount).Result()
		if errScan != nil {
			return errScan
		}
		for _, key := range keys {
			raw, errGet := s.client.Get(ctx, key).Result()
			if errGet != nil {
				continue
			}
			var entry Entry
			if errUnmarshal := json.Unmarshal([]byte(raw), &entry); errUnmarshal != nil {
				continue
			}
			if !fn(entry) {
				return nil
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// SemanticCache answers lookups by embedding similarity. Note that entries
// are not scoped by project: a near-duplicate prompt from one tenant can
// surface another tenant's cached response. This mirrors the original
// behavior and is tracked as an open product question.
type SemanticCache struct {
	store     VectorStore
	embedder  Embedder
	threshold float64
}

// NewSemanticCache constructs a SemanticCache. The threshold must be in
// [0, 1]; out-of-range values fall back to the default.
func NewSemanticCache(store VectorStore, embedder Embedder, threshold float64) *SemanticCache {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &SemanticCache{store: store, embedder: embedder, threshold: threshold}
}

// Lookup returns the single best stored response whose similarity to the
// prompt meets the threshold, plus the prompt's embedding for reuse by the
// caller. Every failure degrades to a miss.
func (c *SemanticCache) Lookup(ctx context.Context, prompt string) (response string, embedding []float64, hit bool) {
	if c == nil || c.store == nil || c.embedder == nil {
		return "", nil, false
	}
	vector, errEmbed := c.embedder.Embed(ctx, prompt)
	if errEmbed != nil {
		log.WithError(errEmbed).Warn("semantic cache embedding unavailable, skipping tier")
		return "", nil, false
	}

	best := Entry{}
	bestScore := 0.0
	errScan := c.store.Scan(ctx, func(entry Entry) bool {
		score := CosineSimilarity(vector, entry.Embedding)
		if score > bestScore {
			bestScore = score
			best = entry
		}
		return true
	})
	if errScan != nil {
		log.WithError(errScan).Warn("semantic cache scan failed, treating as miss")
		return "", vector, false
	}
	if bestScore < c.threshold {
		return "", vector, false
	}
	return best.Response, vector, true
}

// Store upserts the prompt, response and embedding. A nil embedding is
// computed on the spot; failures are logged and swallowed.
func (c *SemanticCache) Store(ctx context.Context, prompt, response string, embedding []float64) {
	if c == nil || c.store == nil {
		return
	}
	if embedding == nil {
		if c.embedder == nil {
			return
		}
		vector, errEmbed := c.embedder.Embed(ctx, prompt)
		if errEmbed != nil {
			log.WithError(errEmbed).Warn("semantic cache store skipped, no embedding")
			return
		}
		embedding = vector
	}
	entry := Entry{Prompt: prompt, Response: response, Embedding: embedding}
	if errUpsert := c.store.Upsert(ctx, PromptHash(prompt), entry); errUpsert != nil {
		log.WithError(errUpsert).Warn("semantic cache write failed")
	}
}

// Threshold exposes the configured similarity threshold.
func (c *SemanticCache) Threshold() float64 { return c.threshold }
