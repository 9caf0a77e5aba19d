// Package retry implements the bounded retry policy used by every action
// executor. Only errors classified transient are retried; permanent errors
// fail on the first attempt with no delay.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Operation is one retryable unit of work
type Operation func(ctx context.Context) error

// Policy bounds retries for an operation. MaxAttempts counts the first
// attempt: the default of 3 means at most two retries.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	OnRetry     func(attempt int, err error) // invoked before each retry sleep
	Logger      zerolog.Logger
}

// Default returns the standard policy: 3 attempts total, backoff doubling
// from 1s and capped at 8s.
func Default(logger zerolog.Logger) *Policy {
	return &Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
		Logger:      logger,
	}
}

// Do runs op until it succeeds, fails permanently, exhausts attempts, or the
// context is cancelled. The last error is returned verbatim so callers can
// record it.
func (p Policy) Do(ctx context.Context, op Operation) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt - 1, lastErr
			}
			return attempt - 1, err
		}

		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return attempt, err
		}
		if attempt == maxAttempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if fn := notifyFrom(ctx); fn != nil {
			fn(attempt, err)
		}

		delay := p.backoff(attempt)
		p.Logger.Info().
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying after transient error")

		select {
		case <-ctx.Done():
			return attempt, lastErr
		case <-time.After(delay):
		}
	}

	return maxAttempts, lastErr
}

// backoff returns the delay before the next attempt: BaseDelay doubled per
// attempt, capped at MaxDelay.
func (p Policy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
