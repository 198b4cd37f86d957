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

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIClient talks to the OpenAI chat completions API, or any
// OpenAI-compatible endpoint.
type OpenAIClient struct {
	endpoint string
	client   *http.Client
}

// NewOpenAIClient constructs an OpenAIClient; empty endpoint selects the
// default.
func NewOpenAIClient(endpoint string) *OpenAIClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultOpenAIEndpoint
	}
	return &OpenAIClient{endpoint: endpoint, client: newHTTPClient()}
}

func (c *OpenAIClient) Name() string { return NameOpenAI }

// Complete sends the canonical request upstream and translates the reply.
func (c *OpenAIClient) Complete(ctx context.Context, apiKey string, req Request) (*Response, error) {
	body, errBuild := buildOpenAIBody(req)
	if errBuild != nil {
		return nil, errBuild
	}

	httpReq, errRequest := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if errRequest != nil {
		return nil, fmt.Errorf("provider: build openai request: %w", errRequest)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, errDo := c.client.Do(httpReq)
	if errDo != nil {
		return nil, fmt.Errorf("provider: openai request: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("provider: read openai response: %w", errRead)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Provider: NameOpenAI, Status: resp.StatusCode, Body: truncateBody(raw)}
	}

	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		return nil, fmt.Errorf("provider: openai response missing content")
	}
	return &Response{
		ID:               gjson.GetBytes(raw, "id").String(),
		Provider:         NameOpenAI,
		Model:            gjson.GetBytes(raw, "model").String(),
		Content:          content.String(),
		PromptTokens:     int(gjson.GetBytes(raw, "usage.prompt_tokens").Int()),
		CompletionTokens: int(gjson.GetBytes(raw, "usage.completion_tokens").Int()),
		TotalTokens:      int(gjson.GetBytes(raw, "usage.total_tokens").Int()),
	}, nil
}

func buildOpenAIBody(req Request) ([]byte, error) {
	body := []byte(`{}`)
	var errSet error
	if body, errSet = sjson.SetBytes(body, "model", req.Model); errSet != nil {
		return nil, fmt.Errorf("provider: build openai body: %w", errSet)
	}
	for i, msg := range req.Messages {
		if body, errSet = sjson.SetBytes(body, fmt.Sprintf("messages.%d.role", i), msg.Role); errSet != nil {
			return nil, fmt.Errorf("provider: build openai body: %w", errSet)
		}
		if body, errSet = sjson.SetBytes(body, fmt.Sprintf("messages.%d.content", i), msg.Content); errSet != nil {
			return nil, fmt.Errorf("provider: build openai body: %w", errSet)
		}
	}
	if req.Temperature != 0 {
		if body, errSet = sjson.SetBytes(body, "temperature", req.Temperature); errSet != nil {
			return nil, fmt.Errorf("provider: build openai body: %w", errSet)
		}
	}
	if req.MaxTokens != 0 {
		if body, errSet = sjson.SetBytes(body, "max_tokens", req.MaxTokens); errSet != nil {
			return nil, fmt.Errorf("provider: build openai body: %w", errSet)
		}
	}
	return body, nil
}

func truncateBody(raw []byte) string {
	const limit = 512
	if len(raw) > limit {
		return string(raw[:limit])
	}
	return string(raw)
}
