package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vantage-ai/vantage/pkg/agent"
	"github.com/vantage-ai/vantage/pkg/datasource"
	"github.com/vantage-ai/vantage/pkg/plan"
	"github.com/vantage-ai/vantage/pkg/retry"
	"github.com/vantage-ai/vantage/pkg/store"
)

// CreateWidget builds a new widget: data model from the modeler, SQL from
// the translator, rows from the data source, then a persisted step and
// widget. The widget id is the action's result reference.
type CreateWidget struct {
	pipeline *queryPipeline
	store    store.Store
	logger   zerolog.Logger
}

// CreateWidgetConfig wires a CreateWidget executor
type CreateWidgetConfig struct {
	Gateway agent.Gateway
	Source  datasource.DataSource
	Store   store.Store
	Retry   *retry.Policy
	Logger  zerolog.Logger
}

// NewCreateWidget creates the executor
func NewCreateWidget(cfg CreateWidgetConfig) (*CreateWidget, error) {
	logger := cfg.Logger.With().Str("executor", "create_widget").Logger()
	qp, err := newQueryPipeline(cfg.Gateway, cfg.Source, cfg.Retry, logger)
	if err != nil {
		return nil, err
	}
	return &CreateWidget{pipeline: qp, store: cfg.Store, logger: logger}, nil
}

var _ Executor = (*CreateWidget)(nil)

// Execute runs the create pipeline and returns the new widget's id
func (e *CreateWidget) Execute(ctx context.Context, inv *Invocation) (string, error) {
	dm, err := e.pipeline.generateModel(ctx, inv, "")
	if err != nil {
		return "", err
	}

	query, rs, err := e.pipeline.translateAndRun(ctx, inv, dm)
	if err != nil {
		return "", err
	}

	widgetID := store.NewID(store.PrefixWidget)
	stepID := store.NewID(store.PrefixStep)
	now := time.Now()

	rowsJSON, err := json.Marshal(rs.Rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode result rows: %w", err)
	}
	modelJSON, _ := json.Marshal(dm.Model)

	if err := e.store.CreateStep(ctx, store.Step{
		ID:        stepID,
		WidgetID:  widgetID,
		Query:     query,
		Columns:   rs.Columns,
		RowsJSON:  string(rowsJSON),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("failed to persist step: %w", err)
	}

	if err := e.store.CreateWidget(ctx, store.Widget{
		ID:            widgetID,
		Title:         dm.Title,
		DataModel:     string(modelJSON),
		CurrentStepID: stepID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		return "", fmt.Errorf("failed to persist widget: %w", err)
	}

	e.logger.Info().
		Str("widget_id", widgetID).
		Str("title", dm.Title).
		Int("rows", len(rs.Rows)).
		Msg("Widget created")

	return widgetID, nil
}

// ModifyWidget adjusts an existing widget. The target must exist before any
// model work happens; a dangling reference fails permanently without an
// agent call.
type ModifyWidget struct {
	pipeline *queryPipeline
	store    store.Store
	logger   zerolog.Logger
}

// NewModifyWidget creates the executor
func NewModifyWidget(cfg CreateWidgetConfig) (*ModifyWidget, error) {
	logger := cfg.Logger.With().Str("executor", "modify_widget").Logger()
	qp, err := newQueryPipeline(cfg.Gateway, cfg.Source, cfg.Retry, logger)
	if err != nil {
		return nil, err
	}
	return &ModifyWidget{pipeline: qp, store: cfg.Store, logger: logger}, nil
}

var _ Executor = (*ModifyWidget)(nil)

// Execute revises the target widget's data model, runs the new query and
// attaches the resulting step to the same widget.
func (e *ModifyWidget) Execute(ctx context.Context, inv *Invocation) (string, error) {
	target, err := e.store.GetWidget(ctx, inv.Spec.TargetRef)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", retry.Permanent(fmt.Errorf("%w: %s", plan.ErrInvalidTarget, inv.Spec.TargetRef))
		}
		// a store outage is not the planner's fault, keep it distinct from
		// a dangling reference
		return "", fmt.Errorf("failed to load widget %s: %w", inv.Spec.TargetRef, err)
	}

	dm, err := e.pipeline.generateModel(ctx, inv, target.DataModel)
	if err != nil {
		return "", err
	}

	query, rs, err := e.pipeline.translateAndRun(ctx, inv, dm)
	if err != nil {
		return "", err
	}

	stepID := store.NewID(store.PrefixStep)
	now := time.Now()

	rowsJSON, err := json.Marshal(rs.Rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode result rows: %w", err)
	}
	modelJSON, _ := json.Marshal(dm.Model)

	if err := e.store.CreateStep(ctx, store.Step{
		ID:        stepID,
		WidgetID:  target.ID,
		Query:     query,
		Columns:   rs.Columns,
		RowsJSON:  string(rowsJSON),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("failed to persist step: %w", err)
	}

	target.Title = dm.Title
	target.DataModel = string(modelJSON)
	target.CurrentStepID = stepID
	target.UpdatedAt = now
	if err := e.store.UpdateWidget(ctx, *target); err != nil {
		return "", fmt.Errorf("failed to update widget: %w", err)
	}

	e.logger.Info().
		Str("widget_id", target.ID).
		Str("step_id", stepID).
		Msg("Widget modified")

	return target.ID, nil
}
