package agent

import (
	"context"
	"fmt"
)

// Provider is a single LLM API backend
type Provider interface {
	// Complete performs one completion call
	Complete(ctx context.Context, model string, req Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Credentials holds API credentials for a provider
type Credentials struct {
	Provider string `json:"provider"` // "anthropic", "openai"
	APIKey   string `json:"api_key"`
}

// NewProvider creates a provider from credentials
func NewProvider(creds Credentials) (Provider, error) {
	switch creds.Provider {
	case "anthropic":
		return NewAnthropicProvider(creds.APIKey), nil
	case "openai":
		return NewOpenAIProvider(creds.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", creds.Provider)
	}
}
