package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vantage-ai/vantage/pkg/agent"
	"github.com/vantage-ai/vantage/pkg/plan"
	"github.com/vantage-ai/vantage/pkg/retry"
	"github.com/vantage-ai/vantage/pkg/store"
)

// AnswerQuestion answers from context without producing a widget. It also
// backs clarify_question, which uses the same pipeline with a different
// framing. The persisted assistant message id is the result reference.
type AnswerQuestion struct {
	gateway agent.Gateway
	store   store.Store
	retry   *retry.Policy
	clarify bool
	logger  zerolog.Logger
}

// AnswerConfig wires an AnswerQuestion executor
type AnswerConfig struct {
	Gateway agent.Gateway
	Store   store.Store
	Retry   *retry.Policy
	// Clarify switches the prompt framing to asking the user a question
	// instead of answering one.
	Clarify bool
	Logger  zerolog.Logger
}

// NewAnswerQuestion creates the executor
func NewAnswerQuestion(cfg AnswerConfig) *AnswerQuestion {
	name := "answer_question"
	if cfg.Clarify {
		name = "clarify_question"
	}
	return &AnswerQuestion{
		gateway: cfg.Gateway,
		store:   cfg.Store,
		retry:   cfg.Retry,
		clarify: cfg.Clarify,
		logger:  cfg.Logger.With().Str("executor", name).Logger(),
	}
}

var _ Executor = (*AnswerQuestion)(nil)

// Execute produces the answer text and persists it as an assistant message
func (e *AnswerQuestion) Execute(ctx context.Context, inv *Invocation) (string, error) {
	resp, err := invokeAgent(ctx, e.gateway, e.retry, agent.Request{
		Kind:   agent.KindAnswerer,
		System: e.systemPrompt(inv),
		Prompt: inv.Spec.Intent,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", plan.WithClass(plan.ClassInvalidAgentOutput,
			retry.Permanent(fmt.Errorf("answerer returned empty response")))
	}

	msgID := store.NewID(store.PrefixMessage)
	if err := e.store.AppendMessage(ctx, store.Message{
		ID:         msgID,
		Role:       "assistant",
		Content:    text,
		WidgetRefs: inv.WidgetRefs(),
		CreatedAt:  time.Now(),
	}); err != nil {
		return "", fmt.Errorf("failed to persist answer: %w", err)
	}

	e.logger.Info().Str("message_id", msgID).Msg("Answer persisted")
	return msgID, nil
}

func (e *AnswerQuestion) systemPrompt(inv *Invocation) string {
	var b strings.Builder
	if e.clarify {
		b.WriteString("The user's request is ambiguous. Ask one concise clarifying question that would let the analysis proceed.")
	} else {
		b.WriteString("You answer questions about the user's data analysis conversation. Be concise and factual; use only the context provided.")
	}

	ec := inv.Context
	if ec == nil {
		return b.String()
	}
	if len(ec.History) > 0 {
		b.WriteString("\n\nRecent conversation:\n")
		for _, m := range ec.History {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}
	if len(ec.HistoryWidgets) > 0 || len(inv.Prior) > 0 {
		b.WriteString("\nWidgets in play:\n")
		for _, w := range ec.HistoryWidgets {
			fmt.Fprintf(&b, "- %s: %s\n", w.ID, w.Title)
		}
		for _, ref := range inv.WidgetRefs() {
			fmt.Fprintf(&b, "- %s (created this turn)\n", ref)
		}
	}
	return b.String()
}
