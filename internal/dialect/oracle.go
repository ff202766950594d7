package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

type OracleDialect struct{}

// plainOracleIdent matches names Oracle folds to upper case when left unquoted.
var plainOracleIdent = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_$#]*$`)

func (d *OracleDialect) Name() string     { return "oracle" }
func (d *OracleDialect) DefaultPort() int { return 1521 }

// ownerArg returns nil for an empty schema so the queries fall back to the session USER.
func (d *OracleDialect) ownerArg(schema string) any {
	if schema == "" {
		return nil
	}
	return strings.ToUpper(schema)
}

func (d *OracleDialect) ListTables(ctx context.Context, db *sql.DB, schema string) ([]string, error) {
	return queryNames(ctx, db, `SELECT TABLE_NAME FROM ALL_TABLES WHERE OWNER = COALESCE(:1, USER) ORDER BY TABLE_NAME`, d.ownerArg(schema))
}

func (d *OracleDialect) ColumnsQuery(schema, table string) (string, []any) {
	// Unquoted names are stored upper case, so both spellings are accepted.
	return `
SELECT
    t.COLUMN_NAME,
    CASE
        WHEN t.DATA_TYPE = 'NUMBER' AND COALESCE(t.DATA_SCALE, 0) > 0 THEN 'DECIMAL'
        WHEN t.DATA_TYPE = 'NUMBER' AND t.DATA_SCALE = 0 THEN 'INTEGER'
        ELSE t.DATA_TYPE
    END,
    CASE t.NULLABLE WHEN 'Y' THEN 'YES' ELSE 'NO' END,
    (SELECT MIN(CASE uc.CONSTRAINT_TYPE WHEN 'P' THEN 'PRI' ELSE 'UNIQUE' END)
     FROM ALL_CONS_COLUMNS cc
     JOIN ALL_CONSTRAINTS uc ON cc.OWNER = uc.OWNER AND cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
     WHERE uc.CONSTRAINT_TYPE IN ('P', 'U')
     AND cc.OWNER = t.OWNER AND cc.TABLE_NAME = t.TABLE_NAME AND cc.COLUMN_NAME = t.COLUMN_NAME)
FROM ALL_TAB_COLUMNS t
WHERE t.OWNER = COALESCE(:1, USER) AND t.TABLE_NAME IN (:2, UPPER(:3))
ORDER BY t.COLUMN_ID`, []any{d.ownerArg(schema), table, table}
}

func (d *OracleDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `
SELECT
    c.TABLE_NAME,
    c.CONSTRAINT_NAME,
    cc.COLUMN_NAME,
    r.TABLE_NAME AS REF_TABLE,
    rcc.COLUMN_NAME AS REF_COLUMN
FROM ALL_CONSTRAINTS c
JOIN ALL_CONS_COLUMNS cc
    ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
    AND c.OWNER = cc.OWNER
JOIN ALL_CONSTRAINTS r
    ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME
    AND c.R_OWNER = r.OWNER
JOIN ALL_CONS_COLUMNS rcc
    ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME
    AND r.OWNER = rcc.OWNER
    AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R'
AND c.OWNER = COALESCE(:1, USER)`, []any{d.ownerArg(schema)}
}

// QuoteIdentifier leaves plain names unquoted so Oracle's case folding still applies.
func (d *OracleDialect) QuoteIdentifier(name string) string {
	if plainOracleIdent.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *OracleDialect) QualifiedName(schema, table string) string {
	return qualify(d.QuoteIdentifier, schema, table)
}

func (d *OracleDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, joinQuoted(d.QuoteIdentifier, cols), vals)
}

func (d *OracleDialect) SelectAllQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM %s", table)
}

func (d *OracleDialect) ExistsQuery(table string, conds []Cond) (string, []any) {
	where, args := buildWhere(d.QuoteIdentifier, d.Placeholder, conds)
	return fmt.Sprintf("SELECT * FROM (SELECT 1 FROM %s%s) WHERE ROWNUM <= 1", table, where), args
}

func (d *OracleDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", table)
}

func (d *OracleDialect) Placeholder(index int) string {
	// Oracle uses :1, :2, etc. (1-based index)
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) NormalizeType(sqlType string) string {
	s := strings.ToLower(sqlType)
	switch {
	case strings.Contains(s, "char") || strings.Contains(s, "clob"):
		return KindText
	case s == "integer":
		return KindInteger
	case s == "decimal" || s == "number":
		return KindDecimal
	case strings.Contains(s, "float") || strings.Contains(s, "double"):
		return KindFloat
	case s == "date" || strings.HasPrefix(s, "timestamp"):
		// Oracle DATE carries a time of day
		return KindDateTime
	case s == "raw" || s == "long raw" || s == "blob":
		return KindBinary
	default:
		return DefaultNormalizeType(s)
	}
}

func (d *OracleDialect) SchemaName(input string) string {
	return input
}

func (d *OracleDialect) BindValue(v any) any { return v }

func (d *OracleDialect) SupportsMultiStatement() bool { return false }
