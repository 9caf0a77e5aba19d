// Package executor implements the per-kind action executors the
// orchestrator dispatches to. Each executor owns the full pipeline for its
// action kind and reports a result reference (the id of the entity it
// produced) or a classified error.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/vantage-ai/vantage/pkg/agent"
	"github.com/vantage-ai/vantage/pkg/contextbuilder"
	"github.com/vantage-ai/vantage/pkg/plan"
	"github.com/vantage-ai/vantage/pkg/retry"
)

// PriorResult is one succeeded action of the current run, visible to later
// actions in the same plan.
type PriorResult struct {
	ActionID  string
	Kind      plan.ActionKind
	ResultRef string
}

// Invocation is everything an executor needs for one action. The spec and
// context are read-only; Prior holds only succeeded results, in plan order.
type Invocation struct {
	RunID   string
	Spec    plan.ActionSpec
	Context *contextbuilder.ExecutionContext
	Prior   []PriorResult
}

// WidgetRefs returns the widget ids produced by prior succeeded actions
func (inv *Invocation) WidgetRefs() []string {
	var refs []string
	for _, p := range inv.Prior {
		if p.Kind.ProducesWidget() {
			refs = append(refs, p.ResultRef)
		}
	}
	return refs
}

// Executor runs one action kind end to end
type Executor interface {
	Execute(ctx context.Context, inv *Invocation) (resultRef string, err error)
}

// Registry maps action kinds to their executors. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	executors map[plan.ActionKind]Executor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{executors: make(map[plan.ActionKind]Executor)}
}

// Register binds an executor to a kind, replacing any previous binding
func (r *Registry) Register(kind plan.ActionKind, ex Executor) {
	r.executors[kind] = ex
}

// Get returns the executor for a kind
func (r *Registry) Get(kind plan.ActionKind) (Executor, error) {
	ex, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("no executor registered for action kind %q", kind)
	}
	return ex, nil
}

// Kinds returns the registered kinds
func (r *Registry) Kinds() []plan.ActionKind {
	kinds := make([]plan.ActionKind, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}
	return kinds
}

// invokeAgent routes one agent call through the retry policy. Exhausted
// transient failures carry the agent_unavailable class; rejections that no
// retry can fix are classified internal.
func invokeAgent(ctx context.Context, gw agent.Gateway, pol *retry.Policy, req agent.Request) (*agent.Response, error) {
	var resp *agent.Response
	attempts, err := pol.Do(ctx, func(ctx context.Context) error {
		var ierr error
		resp, ierr = gw.Invoke(ctx, req)
		return ierr
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case retry.IsRetryable(err):
			return nil, plan.WithClass(plan.ClassAgentUnavailable,
				fmt.Errorf("agent %s unavailable after %d attempts: %w", req.Kind, attempts, err))
		default:
			return nil, plan.WithClass(plan.ClassInternal,
				fmt.Errorf("agent %s rejected the request: %w", req.Kind, err))
		}
	}
	return resp, nil
}
