package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-ai/vantage/pkg/plan"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewID(t *testing.T) {
	id := NewID(PrefixWidget)
	assert.True(t, strings.HasPrefix(id, "wgt_"))
	assert.NotEqual(t, id, NewID(PrefixWidget))
}

func TestSaveActionState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := plan.NewActionState(NewID(PrefixAction), plan.KindCreateWidget)
	require.NoError(t, s.SaveActionState(ctx, "run-1", st))

	require.NoError(t, st.Transition(plan.StatusRunning))
	st.AttemptCount = 1
	require.NoError(t, s.SaveActionState(ctx, "run-1", st))

	require.NoError(t, st.Fail(plan.ErrorRecord{Class: plan.ClassDataSourceError, Message: "query failed", CorrelationID: "c-1"}))
	require.NoError(t, s.SaveActionState(ctx, "run-1", st))

	states, err := s.ListActionStates(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, states, 1, "upsert must not duplicate rows")

	got := states[0]
	assert.Equal(t, st.ID, got.ID)
	assert.Equal(t, plan.StatusFailed, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, plan.ClassDataSourceError, got.LastError.Class)
	assert.NotNil(t, got.EndedAt)
}

func TestListActionStatesByRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, runID := range []string{"run-a", "run-a", "run-b"} {
		st := plan.NewActionState(NewID(PrefixAction), plan.KindAnswerQuestion)
		st.StartedAt = time.Now().Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, s.SaveActionState(ctx, runID, st))
	}

	states, err := s.ListActionStates(ctx, "run-a")
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestWidgetLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := Widget{ID: NewID(PrefixWidget), Title: "Revenue by month", DataModel: `{"type":"bar"}`}
	require.NoError(t, s.CreateWidget(ctx, w))

	got, err := s.GetWidget(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Revenue by month", got.Title)

	got.CurrentStepID = "stp_1"
	got.DataModel = `{"type":"line"}`
	require.NoError(t, s.UpdateWidget(ctx, *got))

	got, err = s.GetWidget(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "stp_1", got.CurrentStepID)
	assert.Equal(t, `{"type":"line"}`, got.DataModel)

	_, err = s.GetWidget(ctx, "wgt_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateWidget(ctx, Widget{ID: "wgt_missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateWidgetIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := Widget{ID: "wgt_fixed", Title: "Original", DataModel: "{}"}
	require.NoError(t, s.CreateWidget(ctx, w))

	// Replaying the create (as a retried persistence call would) neither
	// errors nor clobbers the original.
	w.Title = "Replayed"
	require.NoError(t, s.CreateWidget(ctx, w))

	got, err := s.GetWidget(ctx, "wgt_fixed")
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
}

func TestStepLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := Step{
		ID:       NewID(PrefixStep),
		WidgetID: "wgt_1",
		Query:    "SELECT month, SUM(amount) FROM orders GROUP BY month",
		Columns:  []string{"month", "total"},
		RowsJSON: `[["2026-01",100],["2026-02",140]]`,
	}
	require.NoError(t, s.CreateStep(ctx, st))
	require.NoError(t, s.CreateStep(ctx, st)) // idempotent replay

	got, err := s.GetStep(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"month", "total"}, got.Columns)
	assert.Equal(t, st.Query, got.Query)
}

func TestMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, content := range []string{"first", "second", "third"} {
		m := Message{
			ID:        NewID(PrefixMessage),
			Role:      "user",
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if content == "third" {
			m.WidgetRefs = []string{"wgt_1"}
		}
		require.NoError(t, s.AppendMessage(ctx, m))
	}

	msgs, err := s.ListRecentMessages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Content, "chronological order")
	assert.Equal(t, "third", msgs[1].Content)
	assert.Equal(t, []string{"wgt_1"}, msgs[1].WidgetRefs)
}

func TestDashboards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := Dashboard{
		ID:         NewID(PrefixDashboard),
		Title:      "Q1 overview",
		LayoutJSON: `{"widgets":[{"id":"wgt_1","x":0,"y":0,"w":6,"h":4}]}`,
		WidgetIDs:  []string{"wgt_1"},
	}
	require.NoError(t, s.CreateDashboard(ctx, d))
	require.NoError(t, s.CreateDashboard(ctx, d)) // idempotent replay

	got, err := s.GetDashboard(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"wgt_1"}, got.WidgetIDs)
}

func TestRetentionPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := plan.NewActionState("act_old", plan.KindCreateWidget)
	require.NoError(t, old.Transition(plan.StatusRunning))
	require.NoError(t, old.Succeed("wgt_1"))
	past := time.Now().Add(-48 * time.Hour)
	old.EndedAt = &past
	require.NoError(t, s.SaveActionState(ctx, "run-old", old))

	fresh := plan.NewActionState("act_fresh", plan.KindCreateWidget)
	require.NoError(t, fresh.Transition(plan.StatusRunning))
	require.NoError(t, fresh.Succeed("wgt_2"))
	require.NoError(t, s.SaveActionState(ctx, "run-new", fresh))

	// Orphaned step: widget never created
	require.NoError(t, s.CreateStep(ctx, Step{ID: "stp_orphan", WidgetID: "wgt_gone", Query: "SELECT 1", Columns: []string{"c"}, RowsJSON: "[]"}))

	r := NewRetention(s, RetentionConfig{MaxAge: 24 * time.Hour}, zerolog.Nop())
	require.NoError(t, r.Prune(ctx))

	states, err := s.ListActionStates(ctx, "run-old")
	require.NoError(t, err)
	assert.Empty(t, states)

	states, err = s.ListActionStates(ctx, "run-new")
	require.NoError(t, err)
	assert.Len(t, states, 1)

	_, err = s.GetStep(ctx, "stp_orphan")
	assert.ErrorIs(t, err, ErrNotFound)
}
