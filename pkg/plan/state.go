package plan

import (
	"fmt"
	"time"
)

// ActionStatus represents the execution status of an action
type ActionStatus string

const (
	StatusPending   ActionStatus = "pending"
	StatusRunning   ActionStatus = "running"
	StatusRetrying  ActionStatus = "retrying"
	StatusSucceeded ActionStatus = "succeeded"
	StatusFailed    ActionStatus = "failed"
)

// Terminal reports whether the status is final
func (s ActionStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ErrorRecord is the stable, user-visible failure classification recorded
// on a failed action. Message is a short classification, never raw upstream
// error text; CorrelationID links to internal logs.
type ErrorRecord struct {
	Class         string `json:"class"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

// ActionState is the durable record of one action's progress. It is mutated
// only by its owning executor and the orchestrator, and becomes immutable
// once the status is terminal.
type ActionState struct {
	ID           string       `json:"id"`
	Kind         ActionKind   `json:"kind"`
	Status       ActionStatus `json:"status"`
	AttemptCount int          `json:"attempt_count"`
	LastError    *ErrorRecord `json:"last_error,omitempty"`
	ResultRef    string       `json:"result_ref,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	EndedAt      *time.Time   `json:"ended_at,omitempty"`
}

// NewActionState creates a pending state for an action about to execute
func NewActionState(id string, kind ActionKind) *ActionState {
	return &ActionState{
		ID:        id,
		Kind:      kind,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
}

// validTransitions enumerates the allowed status moves. Terminal statuses
// have no successors.
var validTransitions = map[ActionStatus][]ActionStatus{
	StatusPending:  {StatusRunning, StatusFailed},
	StatusRunning:  {StatusRetrying, StatusSucceeded, StatusFailed},
	StatusRetrying: {StatusRunning, StatusRetrying, StatusSucceeded, StatusFailed},
}

// Transition moves the state to the next status, enforcing monotonicity:
// an action may never leave a terminal status.
func (s *ActionState) Transition(next ActionStatus) error {
	if s.Status.Terminal() {
		return fmt.Errorf("action %s: cannot transition from terminal status %s to %s", s.ID, s.Status, next)
	}
	for _, allowed := range validTransitions[s.Status] {
		if next == allowed {
			s.Status = next
			if next.Terminal() {
				now := time.Now()
				s.EndedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("action %s: invalid transition %s -> %s", s.ID, s.Status, next)
}

// Succeed marks the action succeeded with the reference to what it produced
func (s *ActionState) Succeed(resultRef string) error {
	if err := s.Transition(StatusSucceeded); err != nil {
		return err
	}
	s.ResultRef = resultRef
	return nil
}

// Fail marks the action failed with a stable error classification
func (s *ActionState) Fail(rec ErrorRecord) error {
	if err := s.Transition(StatusFailed); err != nil {
		return err
	}
	s.LastError = &rec
	return nil
}
