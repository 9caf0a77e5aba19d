package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vantage-ai/vantage/pkg/retry"
)

// Kind selects the reasoning role a request is addressed to. Each kind maps
// to a system prompt and sampling profile, not to a separate deployment.
type Kind string

const (
	KindPlanner    Kind = "planner"
	KindModeler    Kind = "modeler"     // produces data-model specs
	KindTranslator Kind = "translator"  // translates data models to SQL
	KindAnswerer   Kind = "answerer"    // free-text answers
	KindDesigner   Kind = "designer"    // dashboard layouts
)

// Request carries one prompt to a reasoning agent
type Request struct {
	Kind        Kind    `json:"kind"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Response is a completed agent reply
type Response struct {
	Text  string      `json:"text"`
	Usage *TokenUsage `json:"usage,omitempty"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Gateway is the uniform interface to a reasoning agent. Implementations
// hide provider differences and classify failures as transient or permanent.
type Gateway interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// LLMGateway routes requests to a configured provider
type LLMGateway struct {
	provider  Provider
	model     string
	maxTokens int
	logger    zerolog.Logger
}

// GatewayConfig configures an LLMGateway
type GatewayConfig struct {
	Provider  Provider
	Model     string
	MaxTokens int
	Logger    zerolog.Logger
}

// NewGateway creates a gateway bound to a single provider
func NewGateway(cfg GatewayConfig) (*LLMGateway, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &LLMGateway{
		provider:  cfg.Provider,
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    cfg.Logger.With().Str("component", "agent-gateway").Logger(),
	}, nil
}

// Invoke sends the request to the underlying provider. Returned errors are
// wrapped as TransientError or PermanentError.
func (g *LLMGateway) Invoke(ctx context.Context, req Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, retry.Permanent(fmt.Errorf("empty prompt"))
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = g.maxTokens
	}

	g.logger.Debug().
		Str("agent_kind", string(req.Kind)).
		Str("provider", g.provider.Name()).
		Int("prompt_len", len(req.Prompt)).
		Msg("Invoking agent")

	resp, err := g.provider.Complete(ctx, g.model, req)
	if err != nil {
		err = classifyProviderError(err)
		g.logger.Warn().
			Str("agent_kind", string(req.Kind)).
			Bool("retryable", retry.IsRetryable(err)).
			Err(err).
			Msg("Agent invocation failed")
		return nil, err
	}

	if resp.Usage != nil {
		g.logger.Debug().
			Str("agent_kind", string(req.Kind)).
			Int("input_tokens", resp.Usage.InputTokens).
			Int("output_tokens", resp.Usage.OutputTokens).
			Msg("Agent invocation completed")
	}
	return resp, nil
}
