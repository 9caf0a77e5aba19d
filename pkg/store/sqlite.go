package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/vantage-ai/vantage/pkg/plan"
)

// SQLiteStore implements Store on a local SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS action_states (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	kind          TEXT NOT NULL,
	status        TEXT NOT NULL,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT,
	result_ref    TEXT,
	started_at    TIMESTAMP NOT NULL,
	ended_at      TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_action_states_run ON action_states(run_id);

CREATE TABLE IF NOT EXISTS widgets (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	data_model      TEXT NOT NULL,
	current_step_id TEXT,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS steps (
	id         TEXT PRIMARY KEY,
	widget_id  TEXT NOT NULL,
	query      TEXT NOT NULL,
	columns    TEXT NOT NULL,
	rows_json  TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_steps_widget ON steps(widget_id);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	widget_refs TEXT,
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS dashboards (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	layout_json TEXT NOT NULL,
	widget_ids  TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
`

// NewSQLiteStore opens (creating if needed) the store database at path.
// Use ":memory:" for tests.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}

	logger = logger.With().Str("component", "store").Logger()
	logger.Info().Str("path", path).Msg("Store initialized")

	return &SQLiteStore{db: db, logger: logger}, nil
}

// SaveActionState upserts one action state keyed by its id. Each call is a
// single transaction; the row is durably visible when this returns.
func (s *SQLiteStore) SaveActionState(ctx context.Context, runID string, st *plan.ActionState) error {
	var lastError sql.NullString
	if st.LastError != nil {
		data, err := json.Marshal(st.LastError)
		if err != nil {
			return fmt.Errorf("failed to marshal error record: %w", err)
		}
		lastError = sql.NullString{String: string(data), Valid: true}
	}

	var endedAt sql.NullTime
	if st.EndedAt != nil {
		endedAt = sql.NullTime{Time: *st.EndedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_states (id, run_id, kind, status, attempt_count, last_error, result_ref, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			attempt_count = excluded.attempt_count,
			last_error = excluded.last_error,
			result_ref = excluded.result_ref,
			ended_at = excluded.ended_at`,
		st.ID, runID, string(st.Kind), string(st.Status), st.AttemptCount,
		lastError, st.ResultRef, st.StartedAt, endedAt)
	if err != nil {
		return fmt.Errorf("failed to save action state %s: %w", st.ID, err)
	}
	return nil
}

// ListActionStates returns the states of a run in start order
func (s *SQLiteStore) ListActionStates(ctx context.Context, runID string) ([]plan.ActionState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, attempt_count, last_error, result_ref, started_at, ended_at
		FROM action_states WHERE run_id = ? ORDER BY started_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list action states: %w", err)
	}
	defer rows.Close()

	var states []plan.ActionState
	for rows.Next() {
		var st plan.ActionState
		var kind, status string
		var lastError, resultRef sql.NullString
		var endedAt sql.NullTime
		if err := rows.Scan(&st.ID, &kind, &status, &st.AttemptCount, &lastError, &resultRef, &st.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action state: %w", err)
		}
		st.Kind = plan.ActionKind(kind)
		st.Status = plan.ActionStatus(status)
		if lastError.Valid {
			var rec plan.ErrorRecord
			if err := json.Unmarshal([]byte(lastError.String), &rec); err == nil {
				st.LastError = &rec
			}
		}
		if resultRef.Valid {
			st.ResultRef = resultRef.String
		}
		if endedAt.Valid {
			t := endedAt.Time
			st.EndedAt = &t
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// CreateWidget inserts a widget; replaying the same id is a no-op
func (s *SQLiteStore) CreateWidget(ctx context.Context, w Widget) error {
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO widgets (id, title, data_model, current_step_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		w.ID, w.Title, w.DataModel, w.CurrentStepID, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create widget %s: %w", w.ID, err)
	}
	return nil
}

// UpdateWidget replaces the widget's data model and current step
func (s *SQLiteStore) UpdateWidget(ctx context.Context, w Widget) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE widgets SET title = ?, data_model = ?, current_step_id = ?, updated_at = ?
		WHERE id = ?`,
		w.Title, w.DataModel, w.CurrentStepID, time.Now(), w.ID)
	if err != nil {
		return fmt.Errorf("failed to update widget %s: %w", w.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("widget %s: %w", w.ID, ErrNotFound)
	}
	return nil
}

// GetWidget fetches a widget by id
func (s *SQLiteStore) GetWidget(ctx context.Context, id string) (*Widget, error) {
	var w Widget
	var currentStep sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, data_model, current_step_id, created_at, updated_at
		FROM widgets WHERE id = ?`, id).
		Scan(&w.ID, &w.Title, &w.DataModel, &currentStep, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("widget %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get widget %s: %w", id, err)
	}
	if currentStep.Valid {
		w.CurrentStepID = currentStep.String
	}
	return &w, nil
}

// CreateStep inserts a step; replaying the same id is a no-op
func (s *SQLiteStore) CreateStep(ctx context.Context, st Step) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	columns, err := json.Marshal(st.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal step columns: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps (id, widget_id, query, columns, rows_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		st.ID, st.WidgetID, st.Query, string(columns), st.RowsJSON, st.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create step %s: %w", st.ID, err)
	}
	return nil
}

// GetStep fetches a step by id
func (s *SQLiteStore) GetStep(ctx context.Context, id string) (*Step, error) {
	var st Step
	var columns string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, widget_id, query, columns, rows_json, created_at
		FROM steps WHERE id = ?`, id).
		Scan(&st.ID, &st.WidgetID, &st.Query, &columns, &st.RowsJSON, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("step %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(columns), &st.Columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step columns: %w", err)
	}
	return &st, nil
}

// AppendMessage inserts a conversation message; replaying the same id is a no-op
func (s *SQLiteStore) AppendMessage(ctx context.Context, m Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	refs, err := json.Marshal(m.WidgetRefs)
	if err != nil {
		return fmt.Errorf("failed to marshal widget refs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, role, content, widget_refs, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		m.ID, m.Role, m.Content, string(refs), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message %s: %w", m.ID, err)
	}
	return nil
}

// GetMessage returns one message by id
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	var m Message
	var refs sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, role, content, widget_refs, created_at FROM messages
		WHERE id = ?`, id).Scan(&m.ID, &m.Role, &m.Content, &refs, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	if refs.Valid && refs.String != "null" {
		if err := json.Unmarshal([]byte(refs.String), &m.WidgetRefs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal widget refs: %w", err)
		}
	}
	return &m, nil
}

// ListRecentMessages returns the most recent messages in chronological order
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, widget_refs, created_at FROM messages
		ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var refs sql.NullString
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &refs, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if refs.Valid && refs.String != "null" {
			if err := json.Unmarshal([]byte(refs.String), &m.WidgetRefs); err != nil {
				return nil, fmt.Errorf("failed to unmarshal widget refs: %w", err)
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CreateDashboard inserts a dashboard; replaying the same id is a no-op
func (s *SQLiteStore) CreateDashboard(ctx context.Context, d Dashboard) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	ids, err := json.Marshal(d.WidgetIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal widget ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dashboards (id, title, layout_json, widget_ids, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		d.ID, d.Title, d.LayoutJSON, string(ids), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create dashboard %s: %w", d.ID, err)
	}
	return nil
}

// GetDashboard fetches a dashboard by id
func (s *SQLiteStore) GetDashboard(ctx context.Context, id string) (*Dashboard, error) {
	var d Dashboard
	var ids string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, layout_json, widget_ids, created_at
		FROM dashboards WHERE id = ?`, id).
		Scan(&d.ID, &d.Title, &d.LayoutJSON, &ids, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dashboard %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(ids), &d.WidgetIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal widget ids: %w", err)
	}
	return &d, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
