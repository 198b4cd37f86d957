package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Embedder converts a prompt into a vector for the semantic tier.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

const (
	mockEmbeddingDims    = 256
	defaultEmbedModel    = "text-embedding-3-small"
	defaultEmbedEndpoint = "https://api.openai.com/v1/embeddings"
	embedRequestTimeout  = 15 * time.Second
)

// OpenAIEmbedder fetches real embeddings over HTTP.
type OpenAIEmbedder struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder; empty endpoint and model
// select the defaults.
func NewOpenAIEmbedder(apiKey, endpoint, model string) *OpenAIEmbedder {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultEmbedEndpoint
	}
	if strings.TrimSpace(model) == "" {
		model = defaultEmbedModel
	}
	return &OpenAIEmbedder{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: embedRequestTimeout},
	}
}

// Embed requests an embedding vector for the text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e == nil || e.apiKey == "" {
		return nil, fmt.Errorf("cache: embedder has no credential")
	}
	payload, errMarshal := json.Marshal(map[string]string{
		"model": e.model,
		"input": text,
	})
	if errMarshal != nil {
		return nil, fmt.Errorf("cache: marshal embed request: %w", errMarshal)
	}
	req, errRequest := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if errRequest != nil {
		return nil, fmt.Errorf("cache: build embed request: %w", errRequest)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, errDo := e.client.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("cache: embed request: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("cache: read embed response: %w", errRead)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cache: embed request status %d", resp.StatusCode)
	}

	raw := gjson.GetBytes(body, "data.0.embedding")
	if !raw.Exists() {
		return nil, fmt.Errorf("cache: embed response missing vector")
	}
	values := raw.Array()
	vector := make([]float64, 0, len(values))
	for _, v := range values {
		vector = append(vector, v.Float())
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("cache: embed response empty vector")
	}
	return vector, nil
}

// MockEmbedder derives a deterministic pseudo-embedding from a chained
// SHA-256 expansion of the prompt. It exists for environments without a
// real embedding capability: same prompt, same vector; distinct prompts
// diverge with overwhelming probability.
type MockEmbedder struct{}

// Embed produces a unit-length 256-dimensional vector.
func (MockEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vector := make([]float64, mockEmbeddingDims)
	seed := sha256.Sum256([]byte(strings.TrimSpace(text)))
	block := seed[:]
	idx := 0
	for idx < mockEmbeddingDims {
		next := sha256.Sum256(block)
		block = next[:]
		for off := 0; off+8 <= len(block) && idx < mockEmbeddingDims; off += 8 {
			bits := binary.BigEndian.Uint64(block[off : off+8])
			// Map to [-1, 1).
			vector[idx] = float64(int64(bits)) / float64(math.MaxInt64)
			idx++
		}
	}
	normalize(vector)
	return vector, nil
}

// normalize scales the vector to unit length in place.
func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
}

// CosineSimilarity returns the cosine of the angle between two vectors, or
// zero when they are incomparable.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
