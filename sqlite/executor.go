// Package sqlite provides the SQLite record-store executor for the listing
// engine, built on database/sql and the mattn/go-sqlite3 driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/listing"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
	"go.uber.org/zap"
)

// Executor runs parameterized queries against a SQLite database.
type Executor struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ listing.Executor = (*Executor)(nil)

// Dialect is the listing dialect matching this executor.
var Dialect listing.Dialect = listing.SQLiteDialect{}

// Open opens a SQLite database and wraps it in an executor.
func Open(dsn string, logger *zap.Logger) (*Executor, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return NewExecutor(db, logger), nil
}

// NewExecutor wraps an existing database handle.
func NewExecutor(db *sql.DB, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{db: db, logger: logger}
}

// DB exposes the underlying handle.
func (e *Executor) DB() *sql.DB { return e.db }

// Close closes the underlying database.
func (e *Executor) Close() error { return e.db.Close() }

// Query executes a SELECT and returns all rows as records.
func (e *Executor) Query(ctx context.Context, sqlText string, args []any) ([]schema.Record, error) {
	e.logger.Debug("Executing SQL query", zap.String("sql", sqlText), zap.Any("params", args))

	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		e.logger.Error("Failed to execute query", zap.Error(err), zap.String("sql", sqlText))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return readRows(rows)
}

// QueryValue executes a single-value query, typically a COUNT.
func (e *Executor) QueryValue(ctx context.Context, sqlText string, args []any) (any, error) {
	e.logger.Debug("Executing SQL scalar query", zap.String("sql", sqlText), zap.Any("params", args))

	var value any
	if err := e.db.QueryRowContext(ctx, sqlText, args...).Scan(&value); err != nil {
		e.logger.Error("Failed to execute scalar query", zap.Error(err), zap.String("sql", sqlText))
		return nil, fmt.Errorf("failed to execute scalar query: %w", err)
	}
	return value, nil
}

// readRows drains a result set into records, normalizing driver byte slices
// to strings so records serialize cleanly.
func readRows(rows *sql.Rows) ([]schema.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var results []schema.Record
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(schema.Record, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}
