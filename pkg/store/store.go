// Package store persists everything the orchestration core produces:
// action states, widgets, steps, messages and dashboards. Every create is
// idempotent keyed by the caller-supplied id, so replaying a persistence
// call after a retry never duplicates an entity.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vantage-ai/vantage/pkg/plan"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("entity not found")

// Widget is a saved visualization. DataModel holds the JSON spec the agent
// produced; CurrentStepID points at the step whose data it renders.
type Widget struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	DataModel     string    `json:"data_model"`
	CurrentStepID string    `json:"current_step_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Step is one executed query: the generated SQL plus the rows and column
// schema it returned.
type Step struct {
	ID        string    `json:"id"`
	WidgetID  string    `json:"widget_id"`
	Query     string    `json:"query"`
	Columns   []string  `json:"columns"`
	RowsJSON  string    `json:"rows_json"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one conversation turn, optionally linked to produced widgets
type Message struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	WidgetRefs []string  `json:"widget_refs,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Dashboard is a saved layout over a set of widgets
type Dashboard struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	LayoutJSON string    `json:"layout_json"`
	WidgetIDs  []string  `json:"widget_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the persistence collaborator consumed by the orchestrator and
// executors. Implementations must be safe for concurrent use across runs,
// and every write is its own transaction boundary.
type Store interface {
	// SaveActionState upserts the durable record of an action, keyed by the
	// action id. Called after every state transition.
	SaveActionState(ctx context.Context, runID string, st *plan.ActionState) error
	ListActionStates(ctx context.Context, runID string) ([]plan.ActionState, error)

	CreateWidget(ctx context.Context, w Widget) error
	UpdateWidget(ctx context.Context, w Widget) error
	GetWidget(ctx context.Context, id string) (*Widget, error)

	CreateStep(ctx context.Context, s Step) error
	GetStep(ctx context.Context, id string) (*Step, error)

	AppendMessage(ctx context.Context, m Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	ListRecentMessages(ctx context.Context, limit int) ([]Message, error)

	CreateDashboard(ctx context.Context, d Dashboard) error
	GetDashboard(ctx context.Context, id string) (*Dashboard, error)

	Close() error
}
