package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-ai/vantage/pkg/contextbuilder"
	"github.com/vantage-ai/vantage/pkg/events"
	"github.com/vantage-ai/vantage/pkg/executor"
	"github.com/vantage-ai/vantage/pkg/plan"
	"github.com/vantage-ai/vantage/pkg/planner"
	"github.com/vantage-ai/vantage/pkg/retry"
	"github.com/vantage-ai/vantage/pkg/store"
)

type fakePlanner struct {
	actions []plan.ActionSpec
	err     error
}

func (f *fakePlanner) CreatePlan(ctx context.Context, req planner.Request) (*plan.Plan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &plan.Plan{ID: "plan_1", Actions: f.actions, CreatedAt: time.Now()}, nil
}

type fakeContexts struct {
	ec *contextbuilder.ExecutionContext
}

func (f *fakeContexts) Build(ctx context.Context, req contextbuilder.Request) (*contextbuilder.ExecutionContext, error) {
	if f.ec != nil {
		return f.ec, nil
	}
	return &contextbuilder.ExecutionContext{}, nil
}

// stubExecutor delegates to a function and records invocations
type stubExecutor struct {
	fn    func(ctx context.Context, inv *executor.Invocation) (string, error)
	calls []*executor.Invocation
}

func (s *stubExecutor) Execute(ctx context.Context, inv *executor.Invocation) (string, error) {
	s.calls = append(s.calls, inv)
	return s.fn(ctx, inv)
}

// collectSink records every emitted event
type collectSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *collectSink) Emit(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collectSink) statuses(actionID string) []plan.ActionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []plan.ActionStatus
	for _, ev := range c.events {
		if ev.ActionID == actionID {
			out = append(out, ev.Status)
		}
	}
	return out
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestOrchestrator(t *testing.T, st store.Store, p PlanSource, reg *executor.Registry, sink events.Sink) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		Contexts: &fakeContexts{},
		Planner:  p,
		Registry: reg,
		Store:    st,
		Sink:     sink,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return o
}

func succeedWith(ref string) *stubExecutor {
	return &stubExecutor{fn: func(ctx context.Context, inv *executor.Invocation) (string, error) {
		return ref, nil
	}}
}

func TestRunAllActionsTerminal(t *testing.T) {
	st := testStore(t)
	sink := &collectSink{}

	reg := executor.NewRegistry()
	reg.Register(plan.KindCreateWidget, succeedWith("wgt_1"))
	reg.Register(plan.KindAnswerQuestion, succeedWith("msg_1"))

	p := &fakePlanner{actions: []plan.ActionSpec{
		{Kind: plan.KindCreateWidget, Intent: "revenue"},
		{Kind: plan.KindCreateWidget, Intent: "churn"},
		{Kind: plan.KindAnswerQuestion, Intent: "summarize"},
	}}

	o := newTestOrchestrator(t, st, p, reg, sink)
	result, err := o.Run(context.Background(), Request{Prompt: "revenue and churn"})
	require.NoError(t, err)

	assert.Equal(t, plan.RunDone, result.Status)
	require.Len(t, result.Actions, 3)
	for _, a := range result.Actions {
		assert.True(t, a.Status.Terminal(), "action %s not terminal", a.ActionID)
	}

	states, err := st.ListActionStates(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, states, 3)
	for _, s := range states {
		assert.Equal(t, plan.StatusSucceeded, s.Status)
		assert.NotNil(t, s.EndedAt)
	}

	// every action emitted pending, running, succeeded in order
	for _, a := range result.Actions {
		assert.Equal(t,
			[]plan.ActionStatus{plan.StatusPending, plan.StatusRunning, plan.StatusSucceeded},
			sink.statuses(a.ActionID))
	}
}

func TestRunContinuesPastFailedAction(t *testing.T) {
	st := testStore(t)

	createCalls := 0
	create := &stubExecutor{fn: func(ctx context.Context, inv *executor.Invocation) (string, error) {
		createCalls++
		if createCalls == 2 {
			return "", plan.WithClass(plan.ClassDataSourceError, retry.Permanent(errors.New("no such table")))
		}
		return "wgt_" + inv.Spec.Intent, nil
	}}
	dashboard := succeedWith("dsh_1")

	reg := executor.NewRegistry()
	reg.Register(plan.KindCreateWidget, create)
	reg.Register(plan.KindDesignDashboard, dashboard)

	p := &fakePlanner{actions: []plan.ActionSpec{
		{Kind: plan.KindCreateWidget, Intent: "a"},
		{Kind: plan.KindCreateWidget, Intent: "b"},
		{Kind: plan.KindDesignDashboard, Intent: "overview"},
	}}

	o := newTestOrchestrator(t, st, p, reg, &collectSink{})
	result, err := o.Run(context.Background(), Request{Prompt: "dashboard"})
	require.NoError(t, err)

	assert.Equal(t, plan.RunDone, result.Status)
	require.Len(t, result.Actions, 3)
	assert.Equal(t, plan.StatusSucceeded, result.Actions[0].Status)
	assert.Equal(t, plan.StatusFailed, result.Actions[1].Status)
	require.NotNil(t, result.Actions[1].Error)
	assert.Equal(t, plan.ClassDataSourceError, result.Actions[1].Error.Class)
	assert.NotEmpty(t, result.Actions[1].Error.CorrelationID)
	assert.Equal(t, plan.StatusSucceeded, result.Actions[2].Status)

	// the dashboard saw only the succeeded widget
	require.Len(t, dashboard.calls, 1)
	assert.Equal(t, []string{"wgt_a"}, dashboard.calls[0].WidgetRefs())
}

func TestRunCancellationMidPlan(t *testing.T) {
	st := testStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	ex := &stubExecutor{fn: func(ctx context.Context, inv *executor.Invocation) (string, error) {
		calls++
		if calls == 3 {
			cancel()
			return "", ctx.Err()
		}
		return "wgt_1", nil
	}}

	reg := executor.NewRegistry()
	reg.Register(plan.KindCreateWidget, ex)

	specs := make([]plan.ActionSpec, 5)
	for i := range specs {
		specs[i] = plan.ActionSpec{Kind: plan.KindCreateWidget, Intent: "w"}
	}

	o := newTestOrchestrator(t, st, &fakePlanner{actions: specs}, reg, &collectSink{})
	result, err := o.Run(ctx, Request{Prompt: "five widgets"})
	require.NoError(t, err)

	assert.Equal(t, plan.RunAborted, result.Status)
	require.Len(t, result.Actions, 3)
	assert.Equal(t, plan.StatusSucceeded, result.Actions[0].Status)
	assert.Equal(t, plan.StatusSucceeded, result.Actions[1].Status)
	assert.Equal(t, plan.StatusFailed, result.Actions[2].Status)
	require.NotNil(t, result.Actions[2].Error)
	assert.Equal(t, plan.ClassCancelled, result.Actions[2].Error.Class)

	// actions 4 and 5 were never created
	states, err := st.ListActionStates(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Len(t, states, 3)
	assert.Equal(t, 3, calls)
}

func TestRunPlanningFailureAborts(t *testing.T) {
	st := testStore(t)
	p := &fakePlanner{err: &plan.PlanningError{Reason: "model returned garbage twice"}}

	o := newTestOrchestrator(t, st, p, executor.NewRegistry(), &collectSink{})
	result, err := o.Run(context.Background(), Request{Prompt: "revenue"})
	require.Error(t, err)
	assert.True(t, plan.IsPlanningError(err))
	assert.Equal(t, plan.RunAborted, result.Status)
	assert.Empty(t, result.Actions)
}

// failingStore wraps a real store and fails action-state persistence
type failingStore struct {
	store.Store
}

func (f *failingStore) SaveActionState(ctx context.Context, runID string, st *plan.ActionState) error {
	return errors.New("disk full")
}

func TestRunStoreOutageAborts(t *testing.T) {
	st := &failingStore{Store: testStore(t)}
	reg := executor.NewRegistry()
	reg.Register(plan.KindCreateWidget, succeedWith("wgt_1"))

	o := newTestOrchestrator(t, st, &fakePlanner{actions: []plan.ActionSpec{
		{Kind: plan.KindCreateWidget, Intent: "revenue"},
	}}, reg, &collectSink{})

	result, err := o.Run(context.Background(), Request{Prompt: "revenue"})
	require.Error(t, err)
	assert.Equal(t, plan.RunAborted, result.Status)
}

func TestRunSurfacesRetryingState(t *testing.T) {
	st := testStore(t)
	sink := &collectSink{}

	pol := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: zerolog.Nop()}
	attempts := 0
	ex := &stubExecutor{fn: func(ctx context.Context, inv *executor.Invocation) (string, error) {
		_, err := pol.Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return retry.Transient(errors.New("overloaded"))
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		return "wgt_1", nil
	}}

	reg := executor.NewRegistry()
	reg.Register(plan.KindCreateWidget, ex)

	o := newTestOrchestrator(t, st, &fakePlanner{actions: []plan.ActionSpec{
		{Kind: plan.KindCreateWidget, Intent: "revenue"},
	}}, reg, sink)

	result, err := o.Run(context.Background(), Request{Prompt: "revenue"})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, plan.StatusSucceeded, result.Actions[0].Status)

	statuses := sink.statuses(result.Actions[0].ActionID)
	assert.Equal(t, []plan.ActionStatus{
		plan.StatusPending, plan.StatusRunning,
		plan.StatusRetrying, plan.StatusRetrying,
		plan.StatusSucceeded,
	}, statuses)

	states, err := st.ListActionStates(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, 3, states[0].AttemptCount)
}

func TestRunAggregatesAnswer(t *testing.T) {
	st := testStore(t)

	answer := &stubExecutor{fn: func(ctx context.Context, inv *executor.Invocation) (string, error) {
		id := store.NewID(store.PrefixMessage)
		err := st.AppendMessage(ctx, store.Message{
			ID: id, Role: "assistant", Content: "Revenue grew 20%.", CreatedAt: time.Now(),
		})
		return id, err
	}}

	reg := executor.NewRegistry()
	reg.Register(plan.KindAnswerQuestion, answer)

	o := newTestOrchestrator(t, st, &fakePlanner{actions: []plan.ActionSpec{
		{Kind: plan.KindAnswerQuestion, Intent: "how is revenue"},
	}}, reg, &collectSink{})

	result, err := o.Run(context.Background(), Request{Prompt: "how is revenue"})
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew 20%.", result.Answer)
}

func TestRunRecordsUserMessage(t *testing.T) {
	st := testStore(t)
	reg := executor.NewRegistry()
	reg.Register(plan.KindAnswerQuestion, succeedWith("msg_x"))

	o := newTestOrchestrator(t, st, &fakePlanner{actions: []plan.ActionSpec{
		{Kind: plan.KindAnswerQuestion, Intent: "hello"},
	}}, reg, &collectSink{})

	_, err := o.Run(context.Background(), Request{Prompt: "hello there"})
	require.NoError(t, err)

	msgs, err := st.ListRecentMessages(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "hello there", msgs[0].Content)
}

func TestRunUnknownActionKindFailsAction(t *testing.T) {
	st := testStore(t)
	o := newTestOrchestrator(t, st, &fakePlanner{actions: []plan.ActionSpec{
		{Kind: plan.KindCreateWidget, Intent: "revenue"},
	}}, executor.NewRegistry(), &collectSink{})

	result, err := o.Run(context.Background(), Request{Prompt: "revenue"})
	require.NoError(t, err)
	assert.Equal(t, plan.RunDone, result.Status)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, plan.StatusFailed, result.Actions[0].Status)
	assert.Equal(t, plan.ClassInternal, result.Actions[0].Error.Class)
}
