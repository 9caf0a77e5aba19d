// Package events carries action progress from the orchestrator to the
// presentation boundary. One event is emitted per action state transition so
// a client can render streaming progress or reconstruct it after reconnect.
package events

import (
	"time"

	"github.com/vantage-ai/vantage/pkg/plan"
)

// Event describes one action state transition
type Event struct {
	RunID     string            `json:"run_id"`
	ActionID  string            `json:"action_id"`
	Kind      plan.ActionKind   `json:"kind"`
	Status    plan.ActionStatus `json:"status"`
	ResultRef string            `json:"result_ref,omitempty"`
	Error     *plan.ErrorRecord `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Sink receives progress events. Emit must never block the orchestrator:
// implementations drop rather than stall.
type Sink interface {
	Emit(ev Event)
}

// NopSink discards all events
type NopSink struct{}

func (NopSink) Emit(Event) {}

// FromState builds an event from the current value of an action state
func FromState(runID string, st *plan.ActionState) Event {
	return Event{
		RunID:     runID,
		ActionID:  st.ID,
		Kind:      st.Kind,
		Status:    st.Status,
		ResultRef: st.ResultRef,
		Error:     st.LastError,
		Timestamp: time.Now(),
	}
}
