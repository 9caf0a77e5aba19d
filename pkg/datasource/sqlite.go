package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLite is a DataSource and Catalog over a local SQLite database
type SQLite struct {
	db            *sql.DB
	businessRules map[string][]string // table -> documented rules
	maxRows       int
	logger        zerolog.Logger
}

// SQLiteConfig configures the SQLite data source
type SQLiteConfig struct {
	Path          string
	BusinessRules map[string][]string
	MaxRows       int // cap on returned rows, default 10000
	Logger        zerolog.Logger
}

// NewSQLite opens the analytical database. SQLite does not enforce
// read-only semantics per statement, so Execute rejects anything that is
// not a SELECT before running it.
func NewSQLite(cfg SQLiteConfig) (*SQLite, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open data source: %w", err)
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &SQLite{
		db:            db,
		businessRules: cfg.BusinessRules,
		maxRows:       maxRows,
		logger:        cfg.Logger.With().Str("component", "datasource").Logger(),
	}, nil
}

// Execute runs a generated SELECT and collects its result set
func (s *SQLite) Execute(ctx context.Context, query string) (*ResultSet, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, classifyQueryError(fmt.Errorf("empty query"))
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return nil, classifyQueryError(fmt.Errorf("only read queries are allowed, got: %.40s", trimmed))
	}

	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Query execution failed")
		return nil, classifyQueryError(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, classifyQueryError(err)
	}

	result := &ResultSet{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= s.maxRows {
			s.logger.Warn().Int("max_rows", s.maxRows).Msg("Result truncated")
			break
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classifyQueryError(err)
		}
		for i, v := range values {
			// Normalize []byte to string so results marshal cleanly
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryError(err)
	}

	s.logger.Debug().Int("rows", len(result.Rows)).Int("columns", len(columns)).Msg("Query executed")
	return result, nil
}

// List returns the schema of every user table plus its business rules
func (s *SQLite) List(ctx context.Context) ([]TableSchema, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var schemas []TableSchema
	for _, name := range names {
		columns, err := s.tableColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, TableSchema{
			Table:         name,
			Columns:       columns,
			BusinessRules: s.businessRules[name],
		})
	}
	return schemas, nil
}

func (s *SQLite) tableColumns(ctx context.Context, table string) ([]ColumnSchema, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []ColumnSchema
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		columns = append(columns, ColumnSchema{Name: name, Type: ctype})
	}
	return columns, rows.Err()
}

// Close closes the underlying database
func (s *SQLite) Close() error {
	return s.db.Close()
}

var (
	_ DataSource = (*SQLite)(nil)
	_ Catalog    = (*SQLite)(nil)
)
