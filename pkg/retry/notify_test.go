package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWithNotify(t *testing.T) {
	var notified []int
	ctx := WithNotify(context.Background(), func(attempt int, err error) {
		notified = append(notified, attempt)
	})

	calls := 0
	attempts, err := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: zerolog.Nop()}.Do(ctx,
		func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return Transient(errors.New("flaky"))
			}
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Fatalf("expected notifications for attempts 1 and 2, got %v", notified)
	}
}

func TestWithNotifyNotCalledOnPermanent(t *testing.T) {
	called := false
	ctx := WithNotify(context.Background(), func(int, error) { called = true })

	_, err := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: zerolog.Nop()}.Do(ctx,
		func(ctx context.Context) error {
			return Permanent(errors.New("bad"))
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Fatal("notify must not fire for permanent errors")
	}
}
