package plan

import "time"

// ActionKind identifies the type of orchestrated work an action performs
type ActionKind string

const (
	KindCreateWidget    ActionKind = "create_widget"
	KindModifyWidget    ActionKind = "modify_widget"
	KindAnswerQuestion  ActionKind = "answer_question"
	KindClarifyQuestion ActionKind = "clarify_question"
	KindDesignDashboard ActionKind = "design_dashboard"
)

// Valid reports whether the kind is one of the known action kinds
func (k ActionKind) Valid() bool {
	switch k {
	case KindCreateWidget, KindModifyWidget, KindAnswerQuestion, KindClarifyQuestion, KindDesignDashboard:
		return true
	}
	return false
}

// ProducesWidget reports whether actions of this kind create or update widgets
func (k ActionKind) ProducesWidget() bool {
	return k == KindCreateWidget || k == KindModifyWidget
}

// ActionSpec describes a single planned action. Specs are produced by the
// planner and are read-only to executors.
type ActionSpec struct {
	Kind      ActionKind             `json:"kind"`
	TargetRef string                 `json:"target_ref,omitempty"` // existing widget/report id
	Intent    string                 `json:"intent"`               // natural-language intent for the action
	Payload   map[string]interface{} `json:"payload,omitempty"`    // kind-specific parameters
}

// Plan is an ordered sequence of actions derived from one user request.
// It is immutable after creation.
type Plan struct {
	ID        string       `json:"id"`
	Actions   []ActionSpec `json:"actions"`
	CreatedAt time.Time    `json:"created_at"`
}

// RunStatus tracks the lifecycle of a plan execution
type RunStatus string

const (
	RunCreated    RunStatus = "created"
	RunPlanning   RunStatus = "planning"
	RunExecuting  RunStatus = "executing"
	RunFinalizing RunStatus = "finalizing"
	RunDone       RunStatus = "done"
	RunAborted    RunStatus = "aborted"
)
