package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// keyMaterial is the canonical request shape hashed into an exact-match key.
// Field order and zero-defaulting are part of the wire contract: identical
// tuples must produce identical keys across deployments.
type keyMaterial struct {
	ProjectID   string  `json:"projectId"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	Prompt      string  `json:"prompt"`
}

// Key derives the deterministic exact-match cache key for a request. The
// prompt is trimmed so that whitespace-only variations share an entry.
func Key(projectID, model string, temperature float64, maxTokens int, prompt string) string {
	material := keyMaterial{
		ProjectID:   projectID,
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Prompt:      strings.TrimSpace(prompt),
	}
	payload, _ := json.Marshal(material)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// PromptHash returns the semantic-tier storage key for a literal prompt.
// Storing the same prompt twice replaces the earlier entry.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(prompt)))
	return hex.EncodeToString(sum[:])
}
