// Package memory stores reusable analysis knowledge: per-topic cached data
// models and sample result rows. The context builder queries it so the
// planner can seed new widgets from previous work on the same subject.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Entry is one remembered analysis: the topic it covers, the data model
// that worked for it and a small sample of the data it produced.
type Entry struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Model     string    `json:"model"`  // data-model spec JSON
	Sample    string    `json:"sample"` // sample rows JSON
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager persists and retrieves memory entries
type Manager struct {
	db     *sql.DB
	logger zerolog.Logger
}

const memorySchema = `
CREATE TABLE IF NOT EXISTS entries (
	id         TEXT PRIMARY KEY,
	topic      TEXT NOT NULL,
	model      TEXT NOT NULL,
	sample     TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_topic ON entries(topic);
`

// NewManager opens (creating if needed) the memory database at path.
// Use ":memory:" for tests.
func NewManager(path string, logger zerolog.Logger) (*Manager, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	if _, err := db.Exec(memorySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize memory schema: %w", err)
	}
	return &Manager{
		db:     db,
		logger: logger.With().Str("component", "memory").Logger(),
	}, nil
}

// Save upserts an entry keyed by id
func (m *Manager) Save(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("memory entry id is required")
	}
	if e.Topic == "" {
		return fmt.Errorf("memory entry topic is required")
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO entries (id, topic, model, sample, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topic = excluded.topic,
			model = excluded.model,
			sample = excluded.sample,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		e.ID, e.Topic, e.Model, e.Sample, e.Source, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save memory entry %s: %w", e.ID, err)
	}
	return nil
}

// Query returns entries whose topic matches any keyword of the given topic
// string, most recently updated first.
func (m *Manager) Query(ctx context.Context, topic string) ([]Entry, error) {
	keywords := tokenize(topic)
	if len(keywords) == 0 {
		return nil, nil
	}

	var conditions []string
	var args []interface{}
	for _, kw := range keywords {
		conditions = append(conditions, "topic LIKE ?")
		args = append(args, "%"+kw+"%")
	}

	query := fmt.Sprintf(`
		SELECT id, topic, model, sample, source, updated_at FROM entries
		WHERE %s ORDER BY updated_at DESC LIMIT 10`, strings.Join(conditions, " OR "))

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Topic, &e.Model, &e.Sample, &e.Source, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes an entry
func (m *Manager) Delete(ctx context.Context, id string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory entry %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}

// tokenize lowercases and splits a topic into keywords, dropping short
// stopword-ish tokens.
func tokenize(topic string) []string {
	fields := strings.FieldsFunc(strings.ToLower(topic), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}
