// Package orchestrator drives one user request end to end: context
// assembly, planning, sequential action execution with durable state, and
// result aggregation. Partial failure is the normal case; one bad action
// never takes down the rest of the plan.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vantage-ai/vantage/pkg/contextbuilder"
	"github.com/vantage-ai/vantage/pkg/events"
	"github.com/vantage-ai/vantage/pkg/executor"
	"github.com/vantage-ai/vantage/pkg/plan"
	"github.com/vantage-ai/vantage/pkg/planner"
	"github.com/vantage-ai/vantage/pkg/retry"
	"github.com/vantage-ai/vantage/pkg/store"
)

// ContextSource builds the execution context for a request
type ContextSource interface {
	Build(ctx context.Context, req contextbuilder.Request) (*contextbuilder.ExecutionContext, error)
}

// PlanSource turns a prompt plus context into a plan
type PlanSource interface {
	CreatePlan(ctx context.Context, req planner.Request) (*plan.Plan, error)
}

// Orchestrator executes user requests. It holds no per-run state, so one
// instance serves concurrent runs.
type Orchestrator struct {
	contexts ContextSource
	planner  PlanSource
	registry *executor.Registry
	store    store.Store
	sink     events.Sink
	logger   zerolog.Logger
}

// Config wires an Orchestrator
type Config struct {
	Contexts ContextSource
	Planner  PlanSource
	Registry *executor.Registry
	Store    store.Store
	Sink     events.Sink
	Logger   zerolog.Logger
}

// New creates an orchestrator
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Planner == nil {
		return nil, fmt.Errorf("orchestrator requires a planner")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("orchestrator requires an executor registry")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("orchestrator requires a store")
	}
	sink := cfg.Sink
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Orchestrator{
		contexts: cfg.Contexts,
		planner:  cfg.Planner,
		registry: cfg.Registry,
		store:    cfg.Store,
		sink:     sink,
		logger:   cfg.Logger.With().Str("component", "orchestrator").Logger(),
	}, nil
}

// Run executes one user request. The returned Result is complete even when
// individual actions failed; only a planning failure or a store outage
// aborts the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	runID := store.NewID(store.PrefixRun)
	logger := o.logger.With().Str("run_id", runID).Logger()
	result := &Result{RunID: runID, Status: plan.RunCreated}

	logger.Info().Str("prompt", req.Prompt).Msg("Run started")

	result.Status = plan.RunPlanning

	ec, err := o.buildContext(ctx, req, &logger)
	if err != nil {
		// context building degrades rather than fails; an error here means
		// the builder itself is miswired
		result.Status = plan.RunAborted
		return result, err
	}
	result.Warnings = append(result.Warnings, ec.Warnings...)

	o.appendUserMessage(ctx, req, &logger)

	pl, err := o.planner.CreatePlan(ctx, planner.Request{Prompt: req.Prompt, Context: ec})
	if err != nil {
		result.Status = plan.RunAborted
		logger.Error().Err(err).Msg("Planning failed, run aborted")
		return result, err
	}
	logger.Info().Str("plan_id", pl.ID).Int("actions", len(pl.Actions)).Msg("Plan created")

	result.Status = plan.RunExecuting
	if err := o.executeActions(ctx, runID, pl, ec, result, &logger); err != nil {
		result.Status = plan.RunAborted
		return result, err
	}

	result.Status = plan.RunFinalizing
	o.finalize(ctx, result, &logger)

	if ctx.Err() != nil {
		result.Status = plan.RunAborted
	} else {
		result.Status = plan.RunDone
	}
	logger.Info().
		Str("status", string(result.Status)).
		Int("actions", len(result.Actions)).
		Msg("Run finished")
	return result, nil
}

// executeActions runs the plan's actions in order. Every state transition
// is persisted before the next dispatch and emitted to the progress sink.
// A returned error means the store is unusable and the run must abort.
func (o *Orchestrator) executeActions(ctx context.Context, runID string, pl *plan.Plan, ec *contextbuilder.ExecutionContext, result *Result, logger *zerolog.Logger) error {
	var prior []executor.PriorResult

	for _, spec := range pl.Actions {
		if ctx.Err() != nil {
			logger.Warn().Msg("Run cancelled, remaining actions skipped")
			return nil
		}

		st := plan.NewActionState(store.NewID(store.PrefixAction), spec.Kind)
		if err := o.persist(ctx, runID, st); err != nil {
			return err
		}

		if err := st.Transition(plan.StatusRunning); err != nil {
			return err
		}
		st.AttemptCount = 1
		if err := o.persist(ctx, runID, st); err != nil {
			return err
		}

		ref, execErr := o.executeOne(ctx, runID, st, spec, ec, prior, logger)

		if execErr != nil {
			rec := o.errorRecord(execErr, logger, st)
			if err := st.Fail(rec); err != nil {
				return err
			}
		} else {
			if err := st.Succeed(ref); err != nil {
				return err
			}
			prior = append(prior, executor.PriorResult{
				ActionID:  st.ID,
				Kind:      spec.Kind,
				ResultRef: ref,
			})
		}
		if err := o.persist(ctx, runID, st); err != nil {
			return err
		}

		result.Actions = append(result.Actions, ActionOutcome{
			ActionID:  st.ID,
			Kind:      st.Kind,
			Status:    st.Status,
			ResultRef: st.ResultRef,
			Error:     st.LastError,
		})

		if execErr != nil && plan.ClassOf(execErr) == plan.ClassCancelled {
			logger.Warn().Str("action_id", st.ID).Msg("Action cancelled mid-flight, stopping run")
			return nil
		}
	}
	return nil
}

// executeOne dispatches a single action to its executor, surfacing retry
// transitions as retrying states.
func (o *Orchestrator) executeOne(ctx context.Context, runID string, st *plan.ActionState, spec plan.ActionSpec, ec *contextbuilder.ExecutionContext, prior []executor.PriorResult, logger *zerolog.Logger) (string, error) {
	ex, err := o.registry.Get(spec.Kind)
	if err != nil {
		return "", plan.WithClass(plan.ClassInternal, err)
	}

	execCtx := retry.WithNotify(ctx, func(attempt int, cause error) {
		if terr := st.Transition(plan.StatusRetrying); terr != nil {
			return
		}
		st.AttemptCount = attempt + 1
		if perr := o.persist(ctx, runID, st); perr != nil {
			logger.Error().Err(perr).Str("action_id", st.ID).Msg("Failed to persist retrying state")
		}
	})

	return ex.Execute(execCtx, &executor.Invocation{
		RunID:   runID,
		Spec:    spec,
		Context: ec,
		Prior:   prior,
	})
}

// persist saves an action state and emits the matching progress event.
// Persistence is synchronous: the next dispatch never starts before the
// previous transition is durable.
func (o *Orchestrator) persist(ctx context.Context, runID string, st *plan.ActionState) error {
	// a cancelled request must still be able to record terminal states
	saveCtx := ctx
	if ctx.Err() != nil {
		saveCtx = context.Background()
	}
	if err := o.store.SaveActionState(saveCtx, runID, st); err != nil {
		return fmt.Errorf("failed to persist action state %s: %w", st.ID, err)
	}
	o.sink.Emit(events.FromState(runID, st))
	return nil
}

// errorRecord classifies an executor error for the durable record. The raw
// error goes to the log under a correlation id; clients only ever see the
// stable class.
func (o *Orchestrator) errorRecord(err error, logger *zerolog.Logger, st *plan.ActionState) plan.ErrorRecord {
	class := plan.ClassOf(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		class = plan.ClassCancelled
	}
	correlationID := uuid.New().String()
	logger.Error().
		Err(err).
		Str("action_id", st.ID).
		Str("class", class).
		Str("correlation_id", correlationID).
		Msg("Action failed")
	return plan.ErrorRecord{
		Class:         class,
		Message:       classMessage(class),
		CorrelationID: correlationID,
	}
}

// classMessage maps an error class to its user-facing message
func classMessage(class string) string {
	switch class {
	case plan.ClassAgentUnavailable:
		return "the reasoning service is temporarily unavailable"
	case plan.ClassInvalidAgentOutput:
		return "the reasoning service returned an unusable response"
	case plan.ClassDataSourceError:
		return "the data source could not answer the generated query"
	case plan.ClassInvalidTarget:
		return "the referenced widget does not exist"
	case plan.ClassCancelled:
		return "the request was cancelled"
	default:
		return "an internal error occurred"
	}
}

// buildContext assembles the execution context, tolerating a nil builder
func (o *Orchestrator) buildContext(ctx context.Context, req Request, logger *zerolog.Logger) (*contextbuilder.ExecutionContext, error) {
	if o.contexts == nil {
		return &contextbuilder.ExecutionContext{}, nil
	}
	ec, err := o.contexts.Build(ctx, contextbuilder.Request{
		Prompt:           req.Prompt,
		SelectedWidgetID: req.SelectedWidgetID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build execution context: %w", err)
	}
	return ec, nil
}

// appendUserMessage records the user's turn in the conversation history.
// Failure is non-fatal: the run proceeds, history just misses a turn.
func (o *Orchestrator) appendUserMessage(ctx context.Context, req Request, logger *zerolog.Logger) {
	err := o.store.AppendMessage(ctx, store.Message{
		ID:        store.NewID(store.PrefixMessage),
		Role:      "user",
		Content:   req.Prompt,
		CreatedAt: time.Now(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to record user message")
	}
}

// finalize fills the aggregate answer from the last succeeded answering
// action, when there is one.
func (o *Orchestrator) finalize(ctx context.Context, result *Result, logger *zerolog.Logger) {
	for i := len(result.Actions) - 1; i >= 0; i-- {
		a := result.Actions[i]
		if a.Status != plan.StatusSucceeded {
			continue
		}
		if a.Kind != plan.KindAnswerQuestion && a.Kind != plan.KindClarifyQuestion {
			continue
		}
		// result ref of an answering action is a message id
		m, err := o.store.GetMessage(ctx, a.ResultRef)
		if err != nil {
			logger.Warn().Err(err).Str("message_id", a.ResultRef).Msg("Failed to load answer message")
			return
		}
		result.Answer = m.Content
		return
	}
}
