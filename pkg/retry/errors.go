package retry

import (
	"errors"
	"fmt"
)

// TransientError wraps failures worth retrying: timeouts, rate limits,
// upstream 5xx responses, connection drops.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps failures that retrying cannot fix: invalid input,
// auth rejection, malformed output.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err as non-retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsRetryable reports whether err is classified transient. Unclassified
// errors are treated as permanent so that unknown failures never loop.
func IsRetryable(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
