// Package datasource executes generated queries against the analytical
// database and exposes the schema catalog the planner reasons over.
package datasource

import (
	"context"
	"errors"
	"strings"

	"github.com/vantage-ai/vantage/pkg/retry"
)

// ResultSet holds the columns and rows a query produced
type ResultSet struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// DataSource executes one query spec. Failures are classified: connection
// or lock trouble is transient, an invalid generated query is permanent.
type DataSource interface {
	Execute(ctx context.Context, query string) (*ResultSet, error)
}

// ColumnSchema describes one column of an analytical table
type ColumnSchema struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSchema describes one table plus the business rules documented for it
type TableSchema struct {
	Table         string         `json:"table"`
	Columns       []ColumnSchema `json:"columns"`
	BusinessRules []string       `json:"business_rules,omitempty"`
}

// Catalog lists the schemas available for planning and modeling
type Catalog interface {
	List(ctx context.Context) ([]TableSchema, error)
}

// classifyQueryError sorts a database error into the retry taxonomy.
// Cancellation passes through unwrapped.
func classifyQueryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"database is locked", "busy", "connection", "i/o", "disk"} {
		if strings.Contains(msg, marker) {
			return retry.Transient(err)
		}
	}
	// Syntax errors, unknown tables/columns and the like: regenerating the
	// query is the only fix, retrying the same one is not.
	return retry.Permanent(err)
}
