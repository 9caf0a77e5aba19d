package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vantage-ai/vantage/internal/config"
	"github.com/vantage-ai/vantage/pkg/agent"
	"github.com/vantage-ai/vantage/pkg/contextbuilder"
	"github.com/vantage-ai/vantage/pkg/datasource"
	"github.com/vantage-ai/vantage/pkg/events"
	"github.com/vantage-ai/vantage/pkg/executor"
	"github.com/vantage-ai/vantage/pkg/memory"
	"github.com/vantage-ai/vantage/pkg/orchestrator"
	"github.com/vantage-ai/vantage/pkg/planner"
	"github.com/vantage-ai/vantage/pkg/retry"
	"github.com/vantage-ai/vantage/pkg/store"
)

// engine holds the wired collaborators for one process
type engine struct {
	store        *store.SQLiteStore
	source       *datasource.SQLite
	memory       *memory.Manager
	watcher      *memory.Watcher
	bus          *events.Bus
	orchestrator *orchestrator.Orchestrator
	retention    *store.Retention
}

// newEngine wires every collaborator from config. Sink receives progress
// events in addition to the engine's own bus.
func newEngine(cfg *config.Config, logger zerolog.Logger, extraSinks ...events.Sink) (*engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.StorePath(), logger)
	if err != nil {
		return nil, err
	}

	source, err := datasource.NewSQLite(datasource.SQLiteConfig{
		Path:    cfg.DataSource.Path,
		MaxRows: cfg.DataSource.MaxRows,
		Logger:  logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	mem, err := memory.NewManager(cfg.Memory.Path, logger)
	if err != nil {
		st.Close()
		source.Close()
		return nil, err
	}

	watcher, err := memory.NewWatcher(cfg.Memory.WatchDir, mem, logger)
	if err != nil {
		st.Close()
		source.Close()
		mem.Close()
		return nil, err
	}
	if err := watcher.Start(context.Background()); err != nil {
		watcher.Stop()
		st.Close()
		source.Close()
		mem.Close()
		return nil, err
	}

	provider, err := agent.NewProvider(agent.Credentials{
		Provider: cfg.Agent.Provider,
		APIKey:   cfg.Agent.APIKey,
	})
	if err != nil {
		watcher.Stop()
		st.Close()
		source.Close()
		mem.Close()
		return nil, err
	}
	gateway, err := agent.NewGateway(agent.GatewayConfig{
		Provider:  provider,
		Model:     cfg.Agent.Model,
		MaxTokens: cfg.Agent.MaxTokens,
		Logger:    logger,
	})
	if err != nil {
		watcher.Stop()
		st.Close()
		source.Close()
		mem.Close()
		return nil, err
	}

	pol := &retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Logger:      logger,
	}

	pln, err := planner.New(planner.Config{Gateway: gateway, Retry: pol, Logger: logger})
	if err != nil {
		watcher.Stop()
		st.Close()
		source.Close()
		mem.Close()
		return nil, err
	}

	registry, err := executor.NewDefaultRegistry(executor.Config{
		Gateway: gateway,
		Source:  source,
		Store:   st,
		Retry:   pol,
		Logger:  logger,
	})
	if err != nil {
		watcher.Stop()
		st.Close()
		source.Close()
		mem.Close()
		return nil, err
	}

	builder := contextbuilder.New(contextbuilder.Config{
		Catalog:      source,
		History:      st,
		Memories:     mem,
		HistoryLimit: cfg.Server.HistoryLimit,
		Logger:       logger,
	})

	bus := events.NewBus(64, logger)
	sinks := append(events.MultiSink{bus}, extraSinks...)

	orch, err := orchestrator.New(orchestrator.Config{
		Contexts: builder,
		Planner:  pln,
		Registry: registry,
		Store:    st,
		Sink:     sinks,
		Logger:   logger,
	})
	if err != nil {
		watcher.Stop()
		st.Close()
		source.Close()
		mem.Close()
		return nil, err
	}

	retention := store.NewRetention(st, store.RetentionConfig{
		MaxAge:   time.Duration(cfg.Retention.MaxAgeDays) * 24 * time.Hour,
		Schedule: cfg.Retention.Schedule,
	}, logger)

	return &engine{
		store:        st,
		source:       source,
		memory:       mem,
		watcher:      watcher,
		bus:          bus,
		orchestrator: orch,
		retention:    retention,
	}, nil
}

func (e *engine) close() {
	e.bus.Close()
	e.watcher.Stop()
	e.memory.Close()
	e.source.Close()
	e.store.Close()
}
