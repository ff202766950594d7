package dialect

import (
	"fmt"
	"strings"
)

// Family strips a driver suffix ("mysql+pymysql" -> "mysql") and folds aliases.
func Family(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if idx := strings.IndexByte(n, '+'); idx >= 0 {
		n = n[:idx]
	}
	switch n {
	case "postgresql", "pg", "pgx":
		return "postgres"
	case "sqlserver":
		return "mssql"
	case "sqlite3":
		return "sqlite"
	}
	return n
}

// GetDialect returns the Dialect implementation for a dialect or driver name.
func GetDialect(name string) (Dialect, error) {
	switch Family(name) {
	case "postgres":
		return &PostgresDialect{}, nil
	case "mysql", "mariadb":
		return &MysqlDialect{}, nil
	case "mssql":
		return &MSSQLDialect{}, nil
	case "oracle":
		return &OracleDialect{}, nil
	case "sqlite":
		return &SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", name)
	}
}

// Ensure interface implementation
var _ Dialect = (*MysqlDialect)(nil)
var _ Dialect = (*PostgresDialect)(nil)
var _ Dialect = (*MSSQLDialect)(nil)
var _ Dialect = (*OracleDialect)(nil)
var _ Dialect = (*SQLiteDialect)(nil)
