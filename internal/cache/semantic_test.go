package cache

import (
	"context"
	"errors"
	"math"
	"testing"
)

// memoryVectorStore is an in-memory VectorStore for tests.
type memoryVectorStore struct {
	entries map[string]Entry
	fail    bool
}

func newMemoryVectorStore() *memoryVectorStore {
	return &memoryVectorStore{entries: make(map[string]Entry)}
}

func (s *memoryVectorStore) Upsert(_ context.Context, key string, entry Entry) error {
	if s.fail {
		return errors.New("store down")
	}
	s.entries[key] = entry
	return nil
}

func (s *memoryVectorStore) Scan(_ context.Context, fn func(entry Entry) bool) error {
	if s.fail {
		return errors.New("store down")
	}
	for _, entry := range s.entries {
		if !fn(entry) {
			return nil
		}
	}
	return nil
}

// failingEmbedder always errors, simulating a missing embedding capability.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("no embedding credential")
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	var e MockEmbedder
	first, errEmbed := e.Embed(context.Background(), "Hello")
	if errEmbed != nil {
		t.Fatalf("embed: %v", errEmbed)
	}
	second, _ := e.Embed(context.Background(), "Hello")
	if len(first) != mockEmbeddingDims {
		t.Fatalf("expected %d dims, got %d", mockEmbeddingDims, len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("expected identical vectors for identical prompts")
		}
	}
	other, _ := e.Embed(context.Background(), "Goodbye")
	if sim := CosineSimilarity(first, other); sim > 0.5 {
		t.Fatalf("expected distinct prompts to diverge, similarity %f", sim)
	}
	var norm float64
	for _, x := range first {
		norm += x * x
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Fatalf("expected unit-length vector, norm^2=%f", norm)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float64{1, 0, 0}
	if sim := CosineSimilarity(a, a); math.Abs(sim-1) > 1e-12 {
		t.Fatalf("expected self-similarity 1, got %f", sim)
	}
	if sim := CosineSimilarity(a, []float64{0, 1, 0}); sim != 0 {
		t.Fatalf("expected orthogonal similarity 0, got %f", sim)
	}
	if sim := CosineSimilarity(a, []float64{1, 0}); sim != 0 {
		t.Fatalf("expected mismatched lengths to score 0, got %f", sim)
	}
}

func TestSemanticCache_HitAndMiss(t *testing.T) {
	store := newMemoryVectorStore()
	c := NewSemanticCache(store, MockEmbedder{}, 0.95)

	c.Store(context.Background(), "Hello", "cached response", nil)
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 stored entry, got %d", len(store.entries))
	}

	// The mock embedder trims whitespace, so a padded prompt is an exact
	// embedding match and must hit.
	response, _, hit := c.Lookup(context.Background(), "  Hello ")
	if !hit {
		t.Fatal("expected near-duplicate prompt to hit")
	}
	if response != "cached response" {
		t.Fatalf("unexpected response %q", response)
	}

	if _, _, hit := c.Lookup(context.Background(), "completely unrelated text"); hit {
		t.Fatal("expected unrelated prompt to miss")
	}
}

func TestSemanticCache_SameLiteralPromptReplaces(t *testing.T) {
	store := newMemoryVectorStore()
	c := NewSemanticCache(store, MockEmbedder{}, 0.95)

	c.Store(context.Background(), "Hello", "first", nil)
	c.Store(context.Background(), "Hello", "second", nil)
	if len(store.entries) != 1 {
		t.Fatalf("expected replacement, got %d entries", len(store.entries))
	}
	response, _, hit := c.Lookup(context.Background(), "Hello")
	if !hit || response != "second" {
		t.Fatalf("expected latest response, got %q hit=%v", response, hit)
	}
}

func TestSemanticCache_DegradesWithoutEmbeddings(t *testing.T) {
	store := newMemoryVectorStore()
	c := NewSemanticCache(store, failingEmbedder{}, 0.95)

	if _, _, hit := c.Lookup(context.Background(), "Hello"); hit {
		t.Fatal("expected lookup to miss when embeddings are unavailable")
	}
	c.Store(context.Background(), "Hello", "response", nil)
	if len(store.entries) != 0 {
		t.Fatal("expected store to be skipped when embeddings are unavailable")
	}
}

func TestNewSemanticCache_ThresholdValidation(t *testing.T) {
	c := NewSemanticCache(newMemoryVectorStore(), MockEmbedder{}, 1.5)
	if c.Threshold() != DefaultSimilarityThreshold {
		t.Fatalf("expected default threshold, got %f", c.Threshold())
	}
	c = NewSemanticCache(newMemoryVectorStore(), MockEmbedder{}, 0.8)
	if c.Threshold() != 0.8 {
		t.Fatalf("expected 0.8, got %f", c.Threshold())
	}
}
