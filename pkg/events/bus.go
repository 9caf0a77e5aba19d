package events

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Bus fans events out to subscribers over buffered channels. Publishing is
// non-blocking: a subscriber whose buffer is full loses events rather than
// stalling the orchestrator or its siblings.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscription
	nextID      int
	bufferSize  int
	closed      bool
	dropped     atomic.Int64
	onDrop      func()
	logger      zerolog.Logger
}

type subscription struct {
	ch    chan Event
	runID string // empty = all runs
}

// NewBus creates a bus with the given per-subscriber buffer size
func NewBus(bufferSize int, logger zerolog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[int]*subscription),
		bufferSize:  bufferSize,
		logger:      logger.With().Str("component", "event-bus").Logger(),
	}
}

// Emit implements Sink
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, sub := range b.subscribers {
		if sub.runID != "" && sub.runID != ev.RunID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop()
			}
			b.logger.Warn().
				Int("subscriber", id).
				Str("action_id", ev.ActionID).
				Str("status", string(ev.Status)).
				Msg("Dropped event for slow subscriber")
		}
	}
}

// Subscribe registers a subscriber for events of one run, or every run when
// runID is empty. The returned cancel function must be called to release the
// subscription; it closes the channel.
func (b *Bus) Subscribe(runID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	sub := &subscription{
		ch:    make(chan Event, b.bufferSize),
		runID: runID,
	}
	b.subscribers[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// OnDrop registers a callback invoked once per dropped event. Set it before
// the bus starts receiving emits.
func (b *Bus) OnDrop(fn func()) {
	b.mu.Lock()
	b.onDrop = fn
	b.mu.Unlock()
}

// Dropped returns the total number of events lost to slow subscribers
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close shuts the bus down; further Emit calls are no-ops
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	return nil
}

var _ Sink = (*Bus)(nil)

// MultiSink emits to several sinks in order
type MultiSink []Sink

func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

var _ Sink = (MultiSink)(nil)

// String renders a short human-readable form, used in debug logs
func (e Event) String() string {
	return fmt.Sprintf("%s/%s %s", e.ActionID, e.Kind, e.Status)
}
