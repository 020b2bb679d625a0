// Package listing turns a normalized schema document plus untrusted request
// parameters into paginated, sorted, filtered result sets. Every identifier
// in generated SQL comes from the schema document; every caller-supplied
// value is a bound parameter. Requests against fields outside their opt-in
// sets are silently dropped, never executed.
package listing

import (
	"fmt"
	"strings"
)

// Dialect abstracts the identifier quoting and parameter placeholder style of
// a SQL backend.
type Dialect interface {
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string
	// Placeholder returns the bind placeholder for the n-th parameter,
	// starting at 1.
	Placeholder(n int) string
}

// SQLiteDialect generates SQLite-flavored SQL ("?" placeholders).
type SQLiteDialect struct{}

// QuoteIdentifier quotes an identifier with double quotes.
func (SQLiteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholder returns "?" regardless of position.
func (SQLiteDialect) Placeholder(int) string { return "?" }

// PostgresDialect generates Postgres-flavored SQL ("$n" placeholders).
type PostgresDialect struct{}

// QuoteIdentifier quotes an identifier with double quotes.
func (PostgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholder returns the positional placeholder for parameter n.
func (PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func qualify(d Dialect, table, column string) string {
	return d.QuoteIdentifier(table) + "." + d.QuoteIdentifier(column)
}
