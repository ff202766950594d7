package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type MSSQLDialect struct{}

func (d *MSSQLDialect) Name() string     { return "mssql" }
func (d *MSSQLDialect) DefaultPort() int { return 1433 }

// Helper: MSSQL Driver (go-mssqldb) prefers @p1, @p2 named parameters over ?

func (d *MSSQLDialect) ListTables(ctx context.Context, db *sql.DB, schema string) ([]string, error) {
	return queryNames(ctx, db, `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`, d.SchemaName(schema))
}

func (d *MSSQLDialect) ColumnsQuery(schema, table string) (string, []any) {
	// PK and UNIQUE come from constraints; unique indexes count as identifying keys too.
	return `
		SELECT
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.IS_NULLABLE,
			CASE
				WHEN pk.COLUMN_NAME IS NOT NULL THEN 'PRI'
				WHEN uq.COLUMN_NAME IS NOT NULL OR ui.COLUMN_NAME IS NOT NULL THEN 'UNIQUE'
				ELSE ''
			END AS COLUMN_KEY
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1
		) pk ON c.TABLE_NAME = pk.TABLE_NAME AND c.COLUMN_NAME = pk.COLUMN_NAME
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'UNIQUE' AND tc.TABLE_SCHEMA = @p1
		) uq ON c.TABLE_NAME = uq.TABLE_NAME AND c.COLUMN_NAME = uq.COLUMN_NAME
		LEFT JOIN (
			SELECT DISTINCT
				t.name AS TABLE_NAME,
				col.name AS COLUMN_NAME
			FROM sys.indexes idx
			JOIN sys.index_columns ic ON idx.object_id = ic.object_id AND idx.index_id = ic.index_id
			JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
			JOIN sys.tables t ON idx.object_id = t.object_id
			JOIN sys.schemas s ON t.schema_id = s.schema_id
			WHERE idx.is_unique = 1
				AND idx.is_primary_key = 0
				AND s.name = @p1
		) ui ON c.TABLE_NAME = ui.TABLE_NAME AND c.COLUMN_NAME = ui.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION
	`, []any{d.SchemaName(schema), table}
}

func (d *MSSQLDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.COLUMN_NAME, KCU2.TABLE_NAME AS REF_TABLE, KCU2.COLUMN_NAME AS REF_COLUMN FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1 ON RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2 ON RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME WHERE KCU1.TABLE_SCHEMA = @p1`, []any{d.SchemaName(schema)}
}

func (d *MSSQLDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *MSSQLDialect) QualifiedName(schema, table string) string {
	return qualify(d.QuoteIdentifier, schema, table)
}

func (d *MSSQLDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, joinQuoted(d.QuoteIdentifier, cols), vals)
}

func (d *MSSQLDialect) SelectAllQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM %s", table)
}

func (d *MSSQLDialect) ExistsQuery(table string, conds []Cond) (string, []any) {
	where, args := buildWhere(d.QuoteIdentifier, d.Placeholder, conds)
	return fmt.Sprintf("SELECT TOP 1 1 FROM %s%s", table, where), args
}

// TruncateQuery uses DELETE: TRUNCATE is refused on tables referenced by a foreign key.
func (d *MSSQLDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "nvarchar", "nchar", "text", "ntext", "varchar", "char", "xml":
		return KindText
	case "tinyint", "smallint", "int", "bigint":
		return KindInteger
	case "money", "smallmoney":
		return KindDecimal
	case "datetime2", "smalldatetime", "datetimeoffset":
		return KindDateTime
	case "image", "varbinary", "timestamp", "rowversion":
		return KindBinary
	default:
		return DefaultNormalizeType(t)
	}
}

func (d *MSSQLDialect) SchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}

func (d *MSSQLDialect) BindValue(v any) any { return v }

func (d *MSSQLDialect) SupportsMultiStatement() bool { return true }
