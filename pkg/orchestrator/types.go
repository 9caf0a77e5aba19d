package orchestrator

import "github.com/vantage-ai/vantage/pkg/plan"

// Request is one user turn handed to the orchestrator
type Request struct {
	Prompt           string `json:"prompt"`
	SelectedWidgetID string `json:"selected_widget_id,omitempty"`
}

// ActionOutcome is the final state of one executed action
type ActionOutcome struct {
	ActionID  string            `json:"action_id"`
	Kind      plan.ActionKind   `json:"kind"`
	Status    plan.ActionStatus `json:"status"`
	ResultRef string            `json:"result_ref,omitempty"`
	Error     *plan.ErrorRecord `json:"error,omitempty"`
}

// Result aggregates a finished run. It is complete even when some actions
// failed: succeeded outcomes keep their result references and failed ones
// carry their error records.
type Result struct {
	RunID    string          `json:"run_id"`
	Status   plan.RunStatus  `json:"status"`
	Actions  []ActionOutcome `json:"actions"`
	Answer   string          `json:"answer,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Succeeded returns the outcomes that completed successfully
func (r *Result) Succeeded() []ActionOutcome {
	var out []ActionOutcome
	for _, a := range r.Actions {
		if a.Status == plan.StatusSucceeded {
			out = append(out, a)
		}
	}
	return out
}

// Failed returns the outcomes that ended in failure
func (r *Result) Failed() []ActionOutcome {
	var out []ActionOutcome
	for _, a := range r.Actions {
		if a.Status == plan.StatusFailed {
			out = append(out, a)
		}
	}
	return out
}
