// Package engine executes compiled report queries against the DuckDB
// reporting warehouse.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"retailmetrics/internal/domain"
)

// Result holds the structured output of a report query.
type Result struct {
	Columns  []string
	Rows     [][]interface{}
	RowCount int
}

// Executor runs parameterized SQL. The reporting service depends on this
// seam rather than on a concrete database handle.
type Executor interface {
	Execute(ctx context.Context, sqlText string, params []interface{}) (*Result, error)
}

// Open opens a DuckDB database at the given path. An empty path opens an
// in-memory database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// DuckDBExecutor is the DuckDB-backed Executor.
type DuckDBExecutor struct {
	db *sql.DB
}

var _ Executor = (*DuckDBExecutor)(nil)

// NewDuckDBExecutor creates a new DuckDBExecutor.
func NewDuckDBExecutor(db *sql.DB) *DuckDBExecutor {
	return &DuckDBExecutor{db: db}
}

// Execute runs a compiled query and returns structured results.
func (e *DuckDBExecutor) Execute(ctx context.Context, sqlText string, params []interface{}) (*Result, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, domain.ErrValidation("sql query is required")
	}

	rows, err := e.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("execute report query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanRows(rows)
}

func scanRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var resultRows [][]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// Convert byte slices to strings for JSON serialization
		row := make([]interface{}, len(vals))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Result{
		Columns:  cols,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}
