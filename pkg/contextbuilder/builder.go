// Package contextbuilder assembles the execution context a request is
// planned and executed against: data-source schemas, recent conversation
// history with produced widgets, and relevant memory excerpts.
//
// Every sub-builder degrades gracefully. Planning can proceed with partial
// context, so a collaborator outage becomes a warning on the context, never
// an error for the whole build.
package contextbuilder

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vantage-ai/vantage/pkg/datasource"
	"github.com/vantage-ai/vantage/pkg/memory"
	"github.com/vantage-ai/vantage/pkg/store"
)

// ExecutionContext is the read-only snapshot shared by every action in a
// plan. A fresh one is built per user request and never mutated mid-plan.
type ExecutionContext struct {
	Schemas        []datasource.TableSchema `json:"schemas"`
	History        []store.Message          `json:"history"`
	HistoryWidgets []store.Widget           `json:"history_widgets"`
	Memories       []memory.Entry           `json:"memories"`
	SelectedWidget *store.Widget            `json:"selected_widget,omitempty"`
	Warnings       []string                 `json:"warnings,omitempty"`
}

// MemoryQuerier is the memory collaborator surface the builder needs
type MemoryQuerier interface {
	Query(ctx context.Context, topic string) ([]memory.Entry, error)
}

// HistoryStore is the store surface the builder needs
type HistoryStore interface {
	ListRecentMessages(ctx context.Context, limit int) ([]store.Message, error)
	GetWidget(ctx context.Context, id string) (*store.Widget, error)
}

// Builder assembles ExecutionContexts from its three sources
type Builder struct {
	catalog      datasource.Catalog
	history      HistoryStore
	memories     MemoryQuerier
	historyLimit int
	logger       zerolog.Logger
}

// Config configures a Builder. Catalog, History and Memories may each be
// nil; the corresponding context section is then empty with a warning.
type Config struct {
	Catalog      datasource.Catalog
	History      HistoryStore
	Memories     MemoryQuerier
	HistoryLimit int // messages of history to include, default 20
	Logger       zerolog.Logger
}

// New creates a context builder
func New(cfg Config) *Builder {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	return &Builder{
		catalog:      cfg.Catalog,
		history:      cfg.History,
		memories:     cfg.Memories,
		historyLimit: limit,
		logger:       cfg.Logger.With().Str("component", "context-builder").Logger(),
	}
}

// Request carries the inputs the builder needs from the caller
type Request struct {
	Prompt           string
	SelectedWidgetID string
}

// Build assembles a fresh ExecutionContext. The three sources are
// independent reads, so they run concurrently.
func (b *Builder) Build(ctx context.Context, req Request) (*ExecutionContext, error) {
	ec := &ExecutionContext{}

	var mu sync.Mutex
	warn := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		b.logger.Warn().Msg(msg)
		mu.Lock()
		ec.Warnings = append(ec.Warnings, msg)
		mu.Unlock()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if b.catalog == nil {
			warn("schema catalog unavailable: not configured")
			return
		}
		schemas, err := b.catalog.List(ctx)
		if err != nil {
			warn("schema catalog unavailable: %v", err)
			return
		}
		mu.Lock()
		ec.Schemas = schemas
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if b.history == nil {
			warn("conversation history unavailable: not configured")
			return
		}
		messages, err := b.history.ListRecentMessages(ctx, b.historyLimit)
		if err != nil {
			warn("conversation history unavailable: %v", err)
			return
		}
		widgets := b.loadHistoryWidgets(ctx, messages)
		mu.Lock()
		ec.History = messages
		ec.HistoryWidgets = widgets
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if b.memories == nil {
			return // memory is optional, absence is not even a warning
		}
		entries, err := b.memories.Query(ctx, req.Prompt)
		if err != nil {
			warn("memory unavailable: %v", err)
			return
		}
		mu.Lock()
		ec.Memories = entries
		mu.Unlock()
	}()

	wg.Wait()

	if req.SelectedWidgetID != "" && b.history != nil {
		w, err := b.history.GetWidget(ctx, req.SelectedWidgetID)
		if err != nil {
			warn("selected widget %s unavailable: %v", req.SelectedWidgetID, err)
		} else {
			ec.SelectedWidget = w
		}
	}

	b.logger.Debug().
		Int("schemas", len(ec.Schemas)).
		Int("history", len(ec.History)).
		Int("memories", len(ec.Memories)).
		Int("warnings", len(ec.Warnings)).
		Msg("Execution context built")

	return ec, nil
}

// loadHistoryWidgets resolves widget refs mentioned in recent messages so
// the planner can see what was already produced.
func (b *Builder) loadHistoryWidgets(ctx context.Context, messages []store.Message) []store.Widget {
	seen := make(map[string]bool)
	var widgets []store.Widget
	for _, m := range messages {
		for _, ref := range m.WidgetRefs {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			w, err := b.history.GetWidget(ctx, ref)
			if err != nil {
				b.logger.Debug().Str("widget_id", ref).Err(err).Msg("Referenced widget not loadable")
				continue
			}
			widgets = append(widgets, *w)
		}
	}
	return widgets
}
