package dialect

import (
	"context"
	"database/sql"
)

// Cond is one equality filter of an ExistsQuery. A nil Value filters on IS NULL.
type Cond struct {
	Column string
	Value  any
}

// Dialect abstracts database-specific operations.
type Dialect interface {
	// Identity
	Name() string
	DefaultPort() int

	// Metadata Queries (Schema Introspection)
	ListTables(ctx context.Context, db *sql.DB, schema string) ([]string, error)
	ColumnsQuery(schema, table string) (string, []any)
	ForeignKeysQuery(schema string) (string, []any)

	// Query Generation
	QuoteIdentifier(name string) string
	QualifiedName(schema, table string) string
	InsertQuery(table string, cols []string) string
	SelectAllQuery(table string) string
	ExistsQuery(table string, conds []Cond) (string, []any)
	TruncateQuery(table string) string
	Placeholder(index int) string // Returns ?, $1, @p1, etc.

	// Helpers
	NormalizeType(sqlType string) string
	SchemaName(input string) string
	BindValue(v any) any
	SupportsMultiStatement() bool
}
