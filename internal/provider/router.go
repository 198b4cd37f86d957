package provider

import (
	"fmt"
	"strings"
)

// Router maps model names to provider adapters.
type Router struct {
	clients map[string]Client
}

// NewRouter constructs a Router over the given adapters.
func NewRouter(clients ...Client) *Router {
	r := &Router{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Name()] = c
	}
	return r
}

// NameForModel infers the provider from the model name. Unrecognized
// models fall back to the supplied project default.
func NameForModel(model, projectDefault string) string {
	lower := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(lower, "gpt"), strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"), strings.HasPrefix(lower, "o4"),
		strings.HasPrefix(lower, "text-embedding"):
		return NameOpenAI
	case strings.HasPrefix(lower, "claude"):
		return NameAnthropic
	}
	if projectDefault != "" {
		return projectDefault
	}
	return NameOpenAI
}

// Client returns the adapter registered under the provider name.
func (r *Router) Client(name string) (Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("provider: no client registered for %q", name)
	}
	return c, nil
}

// FallbackFor returns the cross-provider fallback target for a failed
// call: the sibling provider and a comparable model on it. An empty
// provider means no fallback is available.
func (r *Router) FallbackFor(name, model string) (fallbackName, fallbackModel string) {
	switch name {
	case NameOpenAI:
		fallbackName, fallbackModel = NameAnthropic, "claude-sonnet-4-20250514"
	case NameAnthropic:
		fallbackName, fallbackModel = NameOpenAI, "gpt-4o"
	default:
		return "", ""
	}
	if _, ok := r.clients[fallbackName]; !ok {
		return "", ""
	}
	return fallbackName, fallbackModel
}
