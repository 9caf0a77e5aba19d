package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSaveAndQuery(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, Entry{
		ID:     "e1",
		Topic:  "monthly revenue trends",
		Model:  `{"type":"line","x":"month","y":"revenue"}`,
		Sample: `[["2026-01",100]]`,
	}))
	require.NoError(t, m.Save(ctx, Entry{
		ID:    "e2",
		Topic: "customer churn cohorts",
		Model: `{"type":"bar"}`,
	}))

	t.Run("keyword match", func(t *testing.T) {
		entries, err := m.Query(ctx, "show me revenue by month")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "e1", entries[0].ID)
		assert.Contains(t, entries[0].Model, "line")
	})

	t.Run("no match", func(t *testing.T) {
		entries, err := m.Query(ctx, "warehouse shipping delays")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("short tokens ignored", func(t *testing.T) {
		entries, err := m.Query(ctx, "a of to")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestSaveUpsert(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, Entry{ID: "e1", Topic: "revenue", Model: "v1"}))
	require.NoError(t, m.Save(ctx, Entry{ID: "e1", Topic: "revenue", Model: "v2", UpdatedAt: time.Now().Add(time.Second)}))

	entries, err := m.Query(ctx, "revenue")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v2", entries[0].Model)
}

func TestSaveValidation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	assert.Error(t, m.Save(ctx, Entry{Topic: "revenue"}))
	assert.Error(t, m.Save(ctx, Entry{ID: "e1"}))
}

func TestDelete(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, Entry{ID: "e1", Topic: "revenue", Model: "{}"}))
	require.NoError(t, m.Delete(ctx, "e1"))

	entries, err := m.Query(ctx, "revenue")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"revenue", "month"}, tokenize("Revenue by MONTH!"))
	assert.Empty(t, tokenize("a b c"))
}
