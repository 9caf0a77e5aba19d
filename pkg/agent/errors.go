package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/vantage-ai/vantage/pkg/retry"
)

// classifyProviderError wraps a raw provider SDK error into the
// transient/permanent taxonomy. Context cancellation passes through
// unwrapped so the orchestrator can distinguish it from upstream failure.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	for _, marker := range []string{"429", "rate limit", "500", "502", "503", "504", "overloaded", "timeout", "connection refused", "connection reset", "EOF"} {
		if strings.Contains(msg, marker) {
			return retry.Transient(err)
		}
	}
	return retry.Permanent(err)
}
