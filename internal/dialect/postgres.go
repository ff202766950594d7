package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string     { return "postgres" }
func (d *PostgresDialect) DefaultPort() int { return 5432 }

func (d *PostgresDialect) ListTables(ctx context.Context, db *sql.DB, schema string) ([]string, error) {
	return queryNames(ctx, db, `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`, d.SchemaName(schema))
}

func (d *PostgresDialect) ColumnsQuery(schema, table string) (string, []any) {
	// udt_name is more precise than data_type (int4, jsonb, timestamptz, ...).
	// The key column prefers PRIMARY KEY over UNIQUE when a column carries both.
	return `SELECT
    c.column_name,
    c.udt_name,
    c.is_nullable,
    COALESCE((SELECT CASE tc.constraint_type WHEN 'PRIMARY KEY' THEN 'PRI' ELSE 'UNIQUE' END
     FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu
       ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
     WHERE tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name
     ORDER BY tc.constraint_type LIMIT 1), '') AS column_key
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`, []any{d.SchemaName(schema), table}
}

func (d *PostgresDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, ccu.table_name AS referenced_table_name, ccu.column_name AS referenced_column_name FROM information_schema.key_column_usage kcu JOIN information_schema.constraint_column_usage ccu ON kcu.constraint_name = ccu.constraint_name JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name WHERE kcu.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY'`, []any{d.SchemaName(schema)}
}

func (d *PostgresDialect) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *PostgresDialect) QualifiedName(schema, table string) string {
	return qualify(d.QuoteIdentifier, schema, table)
}

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	// Generate placeholders ($1, $2, ...)
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, joinQuoted(d.QuoteIdentifier, cols), vals)
}

func (d *PostgresDialect) SelectAllQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM %s", table)
}

func (d *PostgresDialect) ExistsQuery(table string, conds []Cond) (string, []any) {
	where, args := buildWhere(d.QuoteIdentifier, d.Placeholder, conds)
	return fmt.Sprintf("SELECT 1 FROM %s%s LIMIT 1", table, where), args
}

func (d *PostgresDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	if strings.HasPrefix(t, "_") {
		// array types are loaded as their text literal ({1,2,3})
		return KindText
	}
	switch t {
	case "int2", "int4", "int8":
		return KindInteger
	case "float4", "float8":
		return KindFloat
	case "bpchar", "varchar", "citext", "tsvector":
		return KindText
	case "timestamptz":
		return KindDateTime
	case "timetz":
		return KindTime
	default:
		return DefaultNormalizeType(t)
	}
}

func (d *PostgresDialect) SchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}

func (d *PostgresDialect) BindValue(v any) any { return v }

func (d *PostgresDialect) SupportsMultiStatement() bool { return true }

func joinQuoted(quote func(string) string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}
