// Package postgres provides the PostgreSQL record-store executor for the
// listing engine, built on pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/listing"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
	"go.uber.org/zap"
)

// Executor runs parameterized queries against a PostgreSQL database.
type Executor struct {
	conn   *pgx.Conn
	logger *zap.Logger
}

var _ listing.Executor = (*Executor)(nil)

// Dialect is the listing dialect matching this executor.
var Dialect listing.Dialect = listing.PostgresDialect{}

// Connect opens a connection and verifies it with a ping.
func Connect(ctx context.Context, connString string, logger *zap.Logger) (*Executor, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewExecutor(conn, logger), nil
}

// NewExecutor wraps an existing connection.
func NewExecutor(conn *pgx.Conn, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{conn: conn, logger: logger}
}

// Close closes the underlying connection.
func (e *Executor) Close(ctx context.Context) error {
	return e.conn.Close(ctx)
}

// Query executes a SELECT and returns all rows as records.
func (e *Executor) Query(ctx context.Context, sqlText string, args []any) ([]schema.Record, error) {
	e.logger.Debug("Executing SQL query", zap.String("sql", sqlText), zap.Any("params", args))

	rows, err := e.conn.Query(ctx, sqlText, args...)
	if err != nil {
		e.logger.Error("Failed to execute query", zap.Error(err), zap.String("sql", sqlText))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var results []schema.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		row := make(schema.Record, len(fields))
		for i, field := range fields {
			row[field.Name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

// QueryValue executes a single-value query, typically a COUNT.
func (e *Executor) QueryValue(ctx context.Context, sqlText string, args []any) (any, error) {
	e.logger.Debug("Executing SQL scalar query", zap.String("sql", sqlText), zap.Any("params", args))

	var value any
	if err := e.conn.QueryRow(ctx, sqlText, args...).Scan(&value); err != nil {
		e.logger.Error("Failed to execute scalar query", zap.Error(err), zap.String("sql", sqlText))
		return nil, fmt.Errorf("failed to execute scalar query: %w", err)
	}
	return value, nil
}
