package step

import (
	"context"
	"fmt"
	"strings"

	"db-fixture/internal/conn"
	"db-fixture/internal/engine"
)

// QueryRequest runs one SQL statement against a service.
type QueryRequest struct {
	Service string
	Conf    conn.Config
	Dialect string
	Driver  string
	Query   string
}

// QueryResult holds the rows of a statement, each value rendered as fixture text.
// Statements without a result set have no columns.
type QueryResult struct {
	Columns []string
	Rows    [][]string
}

// Value collapses the result the way query steps report it: nil without a
// result set, the only row when there is exactly one, and the bare value when
// that row has a single column. Otherwise all rows are returned.
func (q *QueryResult) Value() any {
	if q == nil || len(q.Columns) == 0 {
		return nil
	}
	if len(q.Rows) == 1 {
		if len(q.Rows[0]) == 1 {
			return q.Rows[0][0]
		}
		return q.Rows[0]
	}
	return q.Rows
}

// Query runs req.Query and reads every row it returns. NULL reads as "".
func (r *Runner) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("service %s: query is empty", req.Service)
	}
	log := r.logger().With("service", req.Service)

	db, target, err := r.open(ctx, req.Service, req.Conf, req.Dialect, req.Driver)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	log.Debug("connected", "target", target.Display)

	rows, err := db.QueryContext(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to run query on %s: %w", target.Display, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	res := &QueryResult{Columns: cols, Rows: [][]string{}}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	// a statement without columns still runs on the first Next
	for rows.Next() {
		if len(cols) == 0 {
			continue
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(res.Rows)+1, err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = engine.FormatValue(v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to run query on %s: %w", target.Display, err)
	}

	log.Debug("query done", "columns", len(cols), "rows", len(res.Rows))
	return res, nil
}
