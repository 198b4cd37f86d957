package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion         = "2023-06-01"
	anthropicDefaultMaxTok   = 1024
)

// AnthropicClient talks to the Anthropic messages API.
type AnthropicClient struct {
	endpoint string
	client   *http.Client
}

// NewAnthropicClient constructs an AnthropicClient; empty endpoint selects
// the default.
func NewAnthropicClient(endpoint string) *AnthropicClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultAnthropicEndpoint
	}
	return &AnthropicClient{endpoint: endpoint, client: newHTTPClient()}
}

func (c *AnthropicClient) Name() string { return NameAnthropic }

// Complete sends the canonical request upstream and translates the reply.
// System messages become the top-level system field; max_tokens is
// mandatory upstream so an unset value gets a sane default.
func (c *AnthropicClient) Complete(ctx context.Context, apiKey string, req Request) (*Response, error) {
	body, errBuild := buildAnthropicBody(req)
	if errBuild != nil {
		return nil, errBuild
	}

	httpReq, errRequest := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if errRequest != nil {
		return nil, fmt.Errorf("provider: build anthropic request: %w", errRequest)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, errDo := c.client.Do(httpReq)
	if errDo != nil {
		return nil, fmt.Errorf("provider: anthropic request: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("provider: read anthropic response: %w", errRead)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Provider: NameAnthropic, Status: resp.StatusCode, Body: truncateBody(raw)}
	}

	content := gjson.GetBytes(raw, "content.0.text")
	if !content.Exists() {
		return nil, fmt.Errorf("provider: anthropic response missing content")
	}
	promptTokens := int(gjson.GetBytes(raw, "usage.input_tokens").Int())
	completionTokens := int(gjson.GetBytes(raw, "usage.output_tokens").Int())
	return &Response{
		ID:               gjson.GetBytes(raw, "id").String(),
		Provider:         NameAnthropic,
		Model:            gjson.GetBytes(raw, "model").String(),
		Content:          content.String(),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}, nil
}

func buildAnthropicBody(req Request) ([]byte, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTok
	}
	body := []byte(`{}`)
	var errSet error
	if body, errSet = sjson.SetBytes(body, "model", req.Model); errSet != nil {
		return nil, fmt.Errorf("provider: build anthropic body: %w", errSet)
	}
	if body, errSet = sjson.SetBytes(body, "max_tokens", maxTokens); errSet != nil {
		return nil, fmt.Errorf("provider: build anthropic body: %w", errSet)
	}
	idx := 0
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			if body, errSet = sjson.SetBytes(body, "system", msg.Content); errSet != nil {
				return nil, fmt.Errorf("provider: build anthropic body: %w", errSet)
			}
			continue
		}
		if body, errSet = sjson.SetBytes(body, fmt.Sprintf("messages.%d.role", idx), msg.Role); errSet != nil {
			return nil, fmt.Errorf("provider: build anthropic body: %w", errSet)
		}
		if body, errSet = sjson.SetBytes(body, fmt.Sprintf("messages.%d.content", idx), msg.Content); errSet != nil {
			return nil, fmt.Errorf("provider: build anthropic body: %w", errSet)
		}
		idx++
	}
	if req.Temperature != 0 {
		if body, errSet = sjson.SetBytes(body, "temperature", req.Temperature); errSet != nil {
			return nil, fmt.Errorf("provider: build anthropic body: %w", errSet)
		}
	}
	return body, nil
}
