package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
		Logger:      zerolog.Nop(),
	}
}

func TestDo(t *testing.T) {
	t.Run("success first attempt", func(t *testing.T) {
		attempts, err := testPolicy().Do(context.Background(), func(ctx context.Context) error {
			return nil
		})
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		attempts, err := testPolicy().Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return Transient(errors.New("503"))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("permanent fails immediately", func(t *testing.T) {
		calls := 0
		permErr := Permanent(errors.New("bad input"))
		start := time.Now()
		attempts, err := Policy{MaxAttempts: 3, BaseDelay: time.Second, Logger: zerolog.Nop()}.Do(
			context.Background(), func(ctx context.Context) error {
				calls++
				return permErr
			})
		if !errors.Is(err, permErr) {
			t.Errorf("Expected permanent error returned verbatim, got %v", err)
		}
		if attempts != 1 || calls != 1 {
			t.Errorf("Expected 1 attempt, got attempts=%d calls=%d", attempts, calls)
		}
		if time.Since(start) > 500*time.Millisecond {
			t.Error("Permanent failure should not incur a backoff delay")
		}
	})

	t.Run("exhaustion returns last error", func(t *testing.T) {
		first := Transient(errors.New("first"))
		last := Transient(errors.New("last"))
		calls := 0
		attempts, err := testPolicy().Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return first
			}
			return last
		})
		if !errors.Is(err, last) {
			t.Errorf("Expected last error, got %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := Policy{MaxAttempts: 3, BaseDelay: time.Minute, Logger: zerolog.Nop()}.Do(ctx,
			func(ctx context.Context) error {
				calls++
				cancel()
				return Transient(errors.New("503"))
			})
		if err == nil {
			t.Fatal("Expected error")
		}
		if calls != 1 {
			t.Errorf("Expected 1 call, got %d", calls)
		}
	})

	t.Run("on retry hook", func(t *testing.T) {
		var hookAttempts []int
		p := testPolicy()
		p.OnRetry = func(attempt int, err error) {
			hookAttempts = append(hookAttempts, attempt)
		}
		_, _ = p.Do(context.Background(), func(ctx context.Context) error {
			return Transient(errors.New("503"))
		})
		if len(hookAttempts) != 2 {
			t.Errorf("Expected 2 retry hooks, got %v", hookAttempts)
		}
	})
}

func TestBackoff(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}

	if d := p.backoff(1); d != time.Second {
		t.Errorf("attempt 1: expected 1s, got %v", d)
	}
	if d := p.backoff(2); d != 2*time.Second {
		t.Errorf("attempt 2: expected 2s, got %v", d)
	}
	if d := p.backoff(3); d != 3*time.Second {
		t.Errorf("attempt 3: expected cap 3s, got %v", d)
	}
}
