package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-ai/vantage/pkg/plan"
)

func TestBusFanout(t *testing.T) {
	bus := NewBus(4, zerolog.Nop())
	defer bus.Close()

	ch1, cancel1 := bus.Subscribe("")
	ch2, cancel2 := bus.Subscribe("")
	defer cancel1()
	defer cancel2()

	ev := Event{RunID: "run-1", ActionID: "act-1", Kind: plan.KindCreateWidget, Status: plan.StatusRunning}
	bus.Emit(ev)

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "act-1", got.ActionID)
			assert.Equal(t, plan.StatusRunning, got.Status)
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for event")
		}
	}
}

func TestBusRunFilter(t *testing.T) {
	bus := NewBus(4, zerolog.Nop())
	defer bus.Close()

	ch, cancel := bus.Subscribe("run-2")
	defer cancel()

	bus.Emit(Event{RunID: "run-1", ActionID: "a"})
	bus.Emit(Event{RunID: "run-2", ActionID: "b"})

	select {
	case got := <-ch:
		assert.Equal(t, "b", got.ActionID)
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
	assert.Empty(t, ch)
}

func TestBusSlowSubscriberDropsEvents(t *testing.T) {
	bus := NewBus(1, zerolog.Nop())
	defer bus.Close()

	notified := 0
	bus.OnDrop(func() { notified++ })

	ch, cancel := bus.Subscribe("")
	defer cancel()

	// Buffer holds one event; the second must be dropped, not block.
	done := make(chan struct{})
	go func() {
		bus.Emit(Event{ActionID: "a"})
		bus.Emit(Event{ActionID: "b"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}

	got := <-ch
	assert.Equal(t, "a", got.ActionID)
	assert.Equal(t, int64(1), bus.Dropped())
	assert.Equal(t, 1, notified)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(4, zerolog.Nop())
	defer bus.Close()

	ch, cancel := bus.Subscribe("")
	require.Equal(t, 1, bus.SubscriberCount())

	cancel()
	assert.Equal(t, 0, bus.SubscriberCount())

	// Channel is closed after cancel
	_, open := <-ch
	assert.False(t, open)

	// Double cancel is safe
	cancel()
}

func TestBusClose(t *testing.T) {
	bus := NewBus(4, zerolog.Nop())
	ch, _ := bus.Subscribe("")

	require.NoError(t, bus.Close())
	_, open := <-ch
	assert.False(t, open)

	// Emit after close is a no-op
	bus.Emit(Event{ActionID: "x"})
	require.NoError(t, bus.Close())
}

func TestFromState(t *testing.T) {
	st := plan.NewActionState("act-9", plan.KindAnswerQuestion)
	require.NoError(t, st.Transition(plan.StatusRunning))
	require.NoError(t, st.Succeed("msg-1"))

	ev := FromState("run-1", st)
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "act-9", ev.ActionID)
	assert.Equal(t, plan.StatusSucceeded, ev.Status)
	assert.Equal(t, "msg-1", ev.ResultRef)
	assert.False(t, ev.Timestamp.IsZero())
}
