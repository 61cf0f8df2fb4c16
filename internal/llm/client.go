// Package llm talks to external completion services and turns free-text
// expense descriptions into schema-constrained structured records.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Request is a single structured-generation request: a fixed system
// instruction, the user prompt, and the JSON schema the output must satisfy.
type Request struct {
	System string
	Prompt string
	Schema map[string]any
}

// Client is the provider boundary. StreamCompletion sends the request and
// calls emit for every content chunk as it arrives; it returns the complete
// generated content. Providers without server-side streaming may call emit
// once with the whole content.
type Client interface {
	StreamCompletion(ctx context.Context, req Request, emit func(chunk string)) (string, error)
}

// Config holds configuration for a provider client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	RateLimit   int
}

// NewClient creates a provider client based on the configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
