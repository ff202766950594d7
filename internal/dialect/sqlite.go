package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string     { return "sqlite" }
func (d *SQLiteDialect) DefaultPort() int { return 0 }

func (d *SQLiteDialect) ListTables(ctx context.Context, db *sql.DB, _ string) ([]string, error) {
	return queryNames(ctx, db, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
}

// ColumnsQuery reads pragma_table_info; unique indexes mark their columns as UNIQUE.
// Attached schemas are not consulted, the main database is always used.
func (d *SQLiteDialect) ColumnsQuery(_, table string) (string, []any) {
	return `SELECT p.name, p.type,
    CASE WHEN p."notnull" = 0 THEN 'YES' ELSE 'NO' END,
    CASE
        WHEN p.pk > 0 THEN 'PRI'
        WHEN EXISTS (
            SELECT 1 FROM pragma_index_list(?) il
            JOIN pragma_index_info(il.name) ii
            WHERE il."unique" = 1 AND ii.name = p.name
        ) THEN 'UNIQUE'
        ELSE ''
    END
FROM pragma_table_info(?) p
ORDER BY p.cid`, []any{table, table}
}

func (d *SQLiteDialect) ForeignKeysQuery(_ string) (string, []any) {
	return `SELECT m.name, 'fk_' || m.name || '_' || f.id, f."from", f."table", f."to"
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) f
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'`, nil
}

func (d *SQLiteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *SQLiteDialect) QualifiedName(schema, table string) string {
	return qualify(d.QuoteIdentifier, schema, table)
}

func (d *SQLiteDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, joinQuoted(d.QuoteIdentifier, cols), vals)
}

func (d *SQLiteDialect) SelectAllQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM %s", table)
}

func (d *SQLiteDialect) ExistsQuery(table string, conds []Cond) (string, []any) {
	where, args := buildWhere(d.QuoteIdentifier, d.Placeholder, conds)
	return fmt.Sprintf("SELECT 1 FROM %s%s LIMIT 1", table, where), args
}

func (d *SQLiteDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *SQLiteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SQLiteDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *SQLiteDialect) SchemaName(input string) string {
	return DefaultGetSchemaName(input)
}

// BindValue stores times as ISO-8601 text, the layout SQLite's date functions understand.
func (d *SQLiteDialect) BindValue(v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05.999999999")
}

func (d *SQLiteDialect) SupportsMultiStatement() bool { return true }
