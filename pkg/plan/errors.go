package plan

import (
	"context"
	"errors"
	"fmt"
)

// Stable error classes surfaced on failed actions. Clients see these
// instead of raw upstream error text.
const (
	ClassAgentUnavailable   = "agent_unavailable"
	ClassInvalidAgentOutput = "invalid_agent_output"
	ClassDataSourceError    = "data_source_error"
	ClassInvalidTarget      = "invalid_target"
	ClassCancelled          = "cancelled"
	ClassInternal           = "internal"
)

// ErrInvalidTarget indicates an action referenced a widget that does not
// exist. It is permanent: no retry and no agent calls are made.
var ErrInvalidTarget = errors.New("invalid target reference")

// PlanningError is fatal for the whole request: a malformed plan has no
// well-defined action semantics, so nothing is executed.
type PlanningError struct {
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("planning failed: %s", e.Reason)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// IsPlanningError reports whether err is (or wraps) a PlanningError
func IsPlanningError(err error) bool {
	var pe *PlanningError
	return errors.As(err, &pe)
}

// ClassifiedError tags an error with one of the stable classes above while
// leaving the underlying chain intact for retry classification.
type ClassifiedError struct {
	Class string
	Err   error
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// WithClass wraps err with a stable error class
func WithClass(class string, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: class, Err: err}
}

// ClassOf resolves the stable class for an error. Unclassified errors
// report as internal.
func ClassOf(err error) string {
	if err == nil {
		return ""
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if errors.Is(err, ErrInvalidTarget) {
		return ClassInvalidTarget
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCancelled
	}
	return ClassInternal
}
