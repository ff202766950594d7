package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string     { return "mysql" }
func (d *MysqlDialect) DefaultPort() int { return 3306 }

// schemaArg returns nil for an empty schema so the queries fall back to DATABASE().
func (d *MysqlDialect) schemaArg(schema string) any {
	if schema == "" {
		return nil
	}
	return schema
}

func (d *MysqlDialect) ListTables(ctx context.Context, db *sql.DB, schema string) ([]string, error) {
	return queryNames(ctx, db, `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = COALESCE(?, DATABASE()) AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`, d.schemaArg(schema))
}

func (d *MysqlDialect) ColumnsQuery(schema, table string) (string, []any) {
	return `SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, CASE COLUMN_KEY WHEN 'PRI' THEN 'PRI' WHEN 'UNI' THEN 'UNIQUE' ELSE '' END AS COLUMN_KEY FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = COALESCE(?, DATABASE()) AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`, []any{d.schemaArg(schema), table}
}

func (d *MysqlDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = COALESCE(?, DATABASE()) AND REFERENCED_TABLE_NAME IS NOT NULL`, []any{d.schemaArg(schema)}
}

func (d *MysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MysqlDialect) QualifiedName(schema, table string) string {
	return qualify(d.QuoteIdentifier, schema, table)
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, joinQuoted(d.QuoteIdentifier, cols), vals)
}

func (d *MysqlDialect) SelectAllQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM %s", table)
}

func (d *MysqlDialect) ExistsQuery(table string, conds []Cond) (string, []any) {
	where, args := buildWhere(d.QuoteIdentifier, d.Placeholder, conds)
	return fmt.Sprintf("SELECT 1 FROM %s%s LIMIT 1", table, where), args
}

func (d *MysqlDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", table)
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	switch strings.ToLower(sqlType) {
	case "year":
		return KindInteger
	case "enum", "set":
		return KindText
	default:
		return DefaultNormalizeType(sqlType)
	}
}

func (d *MysqlDialect) SchemaName(input string) string {
	return DefaultGetSchemaName(input)
}

func (d *MysqlDialect) BindValue(v any) any { return v }

// MultiStatements is switched on in the DSN built by the connection layer.
func (d *MysqlDialect) SupportsMultiStatement() bool { return true }
