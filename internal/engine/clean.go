package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"db-fixture/internal/dialect"
	"db-fixture/internal/schema"
)

// Clean empties tables in reverse order, so with tables sorted parents first
// (schema.Analyze) children are emptied before the rows they reference. Each
// table is emptied in its own statement outside a transaction: TRUNCATE commits
// implicitly on some databases. A table that cannot be emptied is logged and
// skipped; the returned count covers the tables that were.
func Clean(ctx context.Context, db *sql.DB, d dialect.Dialect, tables []*schema.Table, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cleaned := 0
	total := len(tables)
	for i := len(tables) - 1; i >= 0; i-- {
		t := tables[i]
		query := d.TruncateQuery(d.QualifiedName(t.Schema, t.Name))
		if _, err := db.ExecContext(ctx, query); err != nil {
			logger.Warn("failed to clean table, continuing", "table", t.FullName(), "error", err)
			continue
		}
		cleaned++
		if cleaned%5 == 0 || cleaned == total {
			logger.Debug("cleaning tables", "done", cleaned, "total", total)
		}
	}

	if err := ctx.Err(); err != nil {
		return cleaned, fmt.Errorf("cleaning interrupted: %w", err)
	}
	logger.Info("tables cleaned", "tables", cleaned)
	return cleaned, nil
}
