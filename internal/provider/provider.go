// Package provider adapts upstream AI model APIs to one canonical
// request/response shape.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider names understood by the router.
const (
	NameOpenAI    = "openai"
	NameAnthropic = "anthropic"
)

const requestTimeout = 60 * time.Second

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the canonical completion request handed to any adapter.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Prompt flattens the conversation into the text used for cache keying:
// the last user message, matching how entries were keyed historically.
func (r Request) Prompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	if len(r.Messages) > 0 {
		return r.Messages[len(r.Messages)-1].Content
	}
	return ""
}

// Response is the canonical completion response every adapter returns.
type Response struct {
	ID               string `json:"id"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	Content          string `json:"content"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Client is implemented by each upstream adapter.
type Client interface {
	Name() string
	Complete(ctx context.Context, apiKey string, req Request) (*Response, error)
}

// Error carries the upstream status so callers can classify retryability.
type Error struct {
	Provider string
	Status   int
	Body     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: %s returned status %d: %s", e.Provider, e.Status, e.Body)
}

// Retryable reports whether the failure is worth one fallback attempt:
// upstream rate limiting, upstream outages and transport errors qualify,
// caller mistakes do not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*Error); ok {
		return pe.Status == http.StatusTooManyRequests || pe.Status >= 500
	}
	// Transport-level failures (timeouts, refused connections) have no
	// status and are retryable against a different provider.
	return true
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
