package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"db-fixture/internal/dialect"
	"db-fixture/internal/fixture"
	"db-fixture/internal/schema"
)

// Verify compares table with the rows of csv and returns a *VerificationError
// listing every discrepancy when they differ.
//
// Non-strict mode checks that each fixture row matches some table row on all
// fixture fields; extra table rows are fine. Strict mode walks fixture and
// table side by side in file order and natural table order (no ORDER BY) and
// compares every field by text: the fixture value must equal the table
// value's CanonicalText exactly. Strict mode is sensitive to row order.
func Verify(ctx context.Context, db *sql.DB, d dialect.Dialect, table string, csv *fixture.Reader, opts Options) error {
	tbl, err := schema.Reflect(ctx, db, d, table)
	if err != nil {
		return err
	}
	header, err := csv.Header()
	if err != nil {
		return err
	}

	var outcomes []Outcome
	if opts.Strict {
		outcomes, err = verifyStrict(ctx, db, d, tbl, header, csv, opts.BatchSize)
	} else {
		outcomes, err = verifySubset(ctx, db, d, tbl, header, csv)
	}
	if err != nil {
		return err
	}

	log := opts.logger()
	if len(outcomes) > 0 {
		log.Warn("table does not match fixture", "table", table, "strict", opts.Strict, "discrepancies", len(outcomes))
		return &VerificationError{Table: table, Strict: opts.Strict, Outcomes: outcomes}
	}
	log.Info("table verified", "table", table, "strict", opts.Strict)
	return nil
}

func verifySubset(ctx context.Context, db *sql.DB, d dialect.Dialect, tbl *schema.Table, header []string, csv *fixture.Reader) ([]Outcome, error) {
	cols := make([]*schema.Column, len(header))
	for i, name := range header {
		cols[i] = tbl.Column(name)
		if cols[i] == nil {
			return nil, &SchemaError{Table: tbl.FullName(), Reason: fmt.Sprintf("fixture field %q is not a column of the table", name)}
		}
	}
	qualified := d.QualifiedName(tbl.Schema, tbl.Name)

	var outcomes []Outcome
	for {
		row, ok := csv.Next()
		if !ok {
			break
		}
		conds := make([]dialect.Cond, len(header))
		for i, col := range cols {
			raw := row.Value(i)
			v, err := Coerce(col, raw, false)
			if err != nil {
				return nil, &CoercionError{Table: tbl.FullName(), Row: row.Line, Field: header[i], Value: raw, Kind: col.Kind, Err: err}
			}
			conds[i] = dialect.Cond{Column: col.Name, Value: d.BindValue(v)}
		}

		query, args := d.ExistsQuery(qualified, conds)
		var one any
		err := db.QueryRowContext(ctx, query, args...).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			outcomes = append(outcomes, Outcome{Kind: MissingInDb, Row: row.Line, Values: csvFields(row)})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up row %d of %s: %w", row.Line, tbl.FullName(), err)
		}
	}
	return outcomes, csv.Err()
}

func verifyStrict(ctx context.Context, db *sql.DB, d dialect.Dialect, tbl *schema.Table, header []string, csv *fixture.Reader, batchSize int) ([]Outcome, error) {
	actual, err := QueryTableRows(ctx, db, d, d.QualifiedName(tbl.Schema, tbl.Name), batchSize)
	if err != nil {
		return nil, err
	}
	defer actual.Close()

	var outcomes []Outcome
	for pos := 1; ; pos++ {
		exp, hasExp := csv.Next()
		act, hasAct := actual.Next()
		if !hasExp && !hasAct {
			break
		}
		switch {
		case !hasExp:
			outcomes = append(outcomes, Outcome{Kind: UnexpectedInDb, Row: pos, Values: act.Fields()})
		case !hasAct:
			outcomes = append(outcomes, Outcome{Kind: MissingInDb, Row: pos, Values: csvFields(exp)})
		default:
			outcomes = append(outcomes, compareRow(tbl, header, pos, exp, act)...)
		}
	}
	if err := csv.Err(); err != nil {
		return nil, err
	}
	if err := actual.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// compareRow returns one Mismatch per differing field; none means Match.
func compareRow(tbl *schema.Table, header []string, pos int, exp fixture.Row, act TableRow) []Outcome {
	var out []Outcome
	for i, name := range header {
		want := exp.Value(i)
		v, ok := act.Get(name)
		if !ok {
			out = append(out, Outcome{Kind: Mismatch, Row: pos, Field: name, Expected: want, Absent: true})
			continue
		}
		got := CanonicalText(tbl.Column(name), v)
		if got == want {
			continue
		}
		out = append(out, Outcome{Kind: Mismatch, Row: pos, Field: name, Expected: want, Actual: got})
	}
	if len(out) == 0 {
		return nil
	}
	key := rowKey(tbl, exp, act)
	for i := range out {
		out[i].Key = key
	}
	return out
}

// rowKey identifies a compared row by the table's key columns, preferring the
// fixture's spelling of the values.
func rowKey(tbl *schema.Table, exp fixture.Row, act TableRow) []Field {
	var keyCols []*schema.Column
	for _, c := range tbl.Columns {
		if c.IsPK {
			keyCols = append(keyCols, c)
		}
	}
	if len(keyCols) == 0 {
		for _, c := range tbl.Columns {
			if c.IsUnique {
				keyCols = append(keyCols, c)
				break
			}
		}
	}

	key := make([]Field, 0, len(keyCols))
	for _, c := range keyCols {
		if v, ok := csvValue(exp, c.Name); ok {
			key = append(key, Field{Name: c.Name, Value: v})
		} else if v, ok := act.Get(c.Name); ok {
			key = append(key, Field{Name: c.Name, Value: FormatValue(v)})
		}
	}
	return key
}

func csvValue(row fixture.Row, name string) (string, bool) {
	for i, h := range row.Header {
		if strings.EqualFold(h, name) {
			return row.Value(i), true
		}
	}
	return "", false
}

func csvFields(row fixture.Row) []Field {
	out := make([]Field, len(row.Header))
	for i, h := range row.Header {
		out[i] = Field{Name: h, Value: row.Value(i)}
	}
	return out
}
