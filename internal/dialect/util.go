package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Semantic column kinds produced by NormalizeType.
const (
	KindInteger  = "integer"
	KindFloat    = "float"
	KindDecimal  = "decimal"
	KindBoolean  = "boolean"
	KindDate     = "date"
	KindDateTime = "datetime"
	KindTime     = "time"
	KindJSON     = "json"
	KindUUID     = "uuid"
	KindBinary   = "binary"
	KindText     = "text"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed and a function that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// DefaultNormalizeType maps a raw catalog type onto a semantic kind.
// Dialects handle their vendor-specific spellings first and fall back here.
func DefaultNormalizeType(sqlType string) string {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if idx := strings.IndexByte(t, '('); idx >= 0 {
		t = strings.TrimSpace(t[:idx])
	}
	switch {
	case t == "":
		return KindText
	case t == "json" || t == "jsonb":
		return KindJSON
	case t == "uuid" || t == "uniqueidentifier":
		return KindUUID
	case t == "bool" || t == "boolean" || t == "bit":
		return KindBoolean
	case strings.Contains(t, "interval"):
		return KindText
	case strings.Contains(t, "timestamp") || strings.Contains(t, "datetime"):
		return KindDateTime
	case t == "date":
		return KindDate
	case strings.HasPrefix(t, "time"):
		return KindTime
	case strings.Contains(t, "int") || t == "serial" || t == "bigserial" || t == "smallserial":
		return KindInteger
	case t == "decimal" || t == "numeric" || t == "number" || strings.Contains(t, "money"):
		return KindDecimal
	case strings.Contains(t, "float") || strings.Contains(t, "double") || t == "real":
		return KindFloat
	case strings.Contains(t, "blob") || strings.Contains(t, "binary") || t == "bytea" || t == "image" || t == "raw":
		return KindBinary
	default:
		return KindText
	}
}

// DefaultGetSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultGetSchemaName(input string) string {
	return input
}

// qualify joins an optional schema and a table with the dialect's quoting.
func qualify(quote func(string) string, schema, table string) string {
	if schema == "" {
		return quote(table)
	}
	return quote(schema) + "." + quote(table)
}

// buildWhere renders equality filters, binding only non-nil values.
func buildWhere(quote func(string) string, placeholder func(int) string, conds []Cond) (string, []any) {
	var parts []string
	var args []any
	for _, c := range conds {
		if c.Value == nil {
			parts = append(parts, fmt.Sprintf("%s IS NULL", quote(c.Column)))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = %s", quote(c.Column), placeholder(len(args))))
		args = append(args, c.Value)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// queryNames runs a single-column query and collects the values.
func queryNames(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return names, nil
}
