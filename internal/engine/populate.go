// Package engine loads CSV fixtures into database tables and verifies table
// content against them.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"db-fixture/internal/dialect"
	"db-fixture/internal/fixture"
	"db-fixture/internal/schema"
)

// Options tunes populate and verify calls.
type Options struct {
	UseJSON   bool
	Strict    bool
	BatchSize int // table rows fetched per batch during strict verification
	Logger    *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Populate inserts every data row of csv into table inside one transaction.
// The table is reflected first and must have a primary or unique key. Every row
// is coerced before anything is written, so a bad value aborts with no insert.
// Fields that are not columns of the table are ignored. It returns the number of rows inserted.
func Populate(ctx context.Context, db *sql.DB, d dialect.Dialect, table string, csv *fixture.Reader, opts Options) (int, error) {
	log := opts.logger()

	tbl, err := schema.Reflect(ctx, db, d, table)
	if err != nil {
		return 0, err
	}
	header, err := csv.Header()
	if err != nil {
		return 0, err
	}
	if len(header) == 0 {
		log.Debug("empty fixture, nothing to load", "table", table)
		return 0, nil
	}

	type pending struct {
		cols []string
		vals []any
	}
	var batch []pending
	for {
		row, ok := csv.Next()
		if !ok {
			break
		}
		cols, vals, err := coerceRow(tbl, row, opts.UseJSON)
		if err != nil {
			return 0, err
		}
		if len(cols) == 0 {
			continue
		}
		for i := range vals {
			vals[i] = d.BindValue(vals[i])
		}
		batch = append(batch, pending{cols: cols, vals: vals})
	}
	if err := csv.Err(); err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		log.Debug("fixture has no data rows", "table", table)
		return 0, nil
	}

	qualified := d.QualifiedName(tbl.Schema, tbl.Name)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	for i, p := range batch {
		if _, err := tx.ExecContext(ctx, d.InsertQuery(qualified, p.cols), p.vals...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d into %s: %w", i+1, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", table, err)
	}
	log.Info("table populated", "table", table, "rows", len(batch))
	return len(batch), nil
}
