package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-fixture/internal/dialect"
)

// DefaultBatchSize is how many table rows TableRows buffers per fetch.
const DefaultBatchSize = 1000

// TableRow is one database row with the column names of its result set.
type TableRow struct {
	Columns []string
	Values  []any
}

// Get returns the value of a column, matched exactly and then case-insensitively.
func (r TableRow) Get(name string) (any, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	for i, c := range r.Columns {
		if strings.EqualFold(c, name) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Fields renders the row in column order.
func (r TableRow) Fields() []Field {
	out := make([]Field, len(r.Columns))
	for i, c := range r.Columns {
		out[i] = Field{Name: c, Value: FormatValue(r.Values[i])}
	}
	return out
}

// TableRows is a forward-only cursor over a whole table in its natural order.
// It cannot be restarted; Close releases the cursor and may be called any number of times.
type TableRows struct {
	rows      *sql.Rows
	columns   []string
	batch     []TableRow
	pos       int
	batchSize int
	done      bool
	err       error
}

// QueryTableRows issues SELECT * for table (already qualified and quoted).
// No ORDER BY is added.
func QueryTableRows(ctx context.Context, db *sql.DB, d dialect.Dialect, table string, batchSize int) (*TableRows, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	rows, err := db.QueryContext(ctx, d.SelectAllQuery(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	return &TableRows{rows: rows, columns: cols, batchSize: batchSize}, nil
}

func (t *TableRows) Columns() []string { return t.columns }

// Next returns the next row, fetching a new batch when the buffer is drained.
func (t *TableRows) Next() (TableRow, bool) {
	if t.pos >= len(t.batch) {
		if t.done || !t.fill() {
			return TableRow{}, false
		}
	}
	row := t.batch[t.pos]
	t.batch[t.pos] = TableRow{}
	t.pos++
	return row, true
}

func (t *TableRows) fill() bool {
	t.batch = t.batch[:0]
	t.pos = 0
	for len(t.batch) < t.batchSize {
		if !t.rows.Next() {
			t.done = true
			if err := t.rows.Err(); err != nil {
				t.err = fmt.Errorf("error iterating table rows: %w", err)
			}
			t.Close()
			break
		}
		values := make([]any, len(t.columns))
		ptrs := make([]any, len(t.columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := t.rows.Scan(ptrs...); err != nil {
			t.err = fmt.Errorf("failed to scan table row: %w", err)
			t.done = true
			t.Close()
			break
		}
		t.batch = append(t.batch, TableRow{Columns: t.columns, Values: values})
	}
	return len(t.batch) > 0
}

func (t *TableRows) Err() error { return t.err }

func (t *TableRows) Close() error {
	if t.rows == nil {
		return nil
	}
	rows := t.rows
	t.rows = nil
	t.done = true
	return rows.Close()
}
