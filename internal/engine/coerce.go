package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"db-fixture/internal/dialect"
	"db-fixture/internal/fixture"
	"db-fixture/internal/schema"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var timeLayouts = []string{"15:04:05.999999999", "15:04:05", "15:04"}

// Coerce converts a CSV value to the Go value bound for col.
// The empty string is NULL. With useJSON the value is first decoded as JSON:
// strings are unwrapped, objects and arrays are kept as compact JSON text,
// and values that are not JSON stay as written.
func Coerce(col *schema.Column, value string, useJSON bool) (any, error) {
	if value == "" {
		return nil, nil
	}
	if useJSON {
		v, isNull := decodeJSON(value)
		if isNull {
			return nil, nil
		}
		value = v
	}

	switch col.Kind {
	case dialect.KindInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	case dialect.KindFloat:
		return strconv.ParseFloat(strings.TrimSpace(value), 64)
	case dialect.KindDecimal:
		return decimal.NewFromString(strings.TrimSpace(value))
	case dialect.KindBoolean:
		return strconv.ParseBool(strings.TrimSpace(value))
	case dialect.KindDate:
		t, err := dateparse.ParseIn(strings.TrimSpace(value), time.UTC)
		if err != nil {
			return nil, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	case dialect.KindDateTime:
		return dateparse.ParseIn(strings.TrimSpace(value), time.UTC)
	case dialect.KindTime:
		v := strings.TrimSpace(value)
		for _, layout := range timeLayouts {
			if _, err := time.Parse(layout, v); err == nil {
				return v, nil
			}
		}
		return nil, fmt.Errorf("not a time of day")
	case dialect.KindUUID:
		id, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	case dialect.KindJSON:
		if !json.Valid([]byte(value)) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return value, nil
	case dialect.KindBinary:
		return []byte(value), nil
	default:
		return value, nil
	}
}

// decodeJSON returns the text to coerce for a value that may be JSON.
func decodeJSON(value string) (string, bool) {
	var decoded any
	dec := json.NewDecoder(strings.NewReader(value))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil || dec.More() {
		return value, false
	}
	switch v := decoded.(type) {
	case nil:
		return "", true
	case string:
		return v, false
	case json.Number:
		return v.String(), false
	case bool:
		return strconv.FormatBool(v), false
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(value)); err != nil {
			return value, false
		}
		return buf.String(), false
	}
}

// coerceRow converts the fields of one CSV row that exist in the table.
// Unknown fields are skipped; the returned columns use the table's spelling.
func coerceRow(tbl *schema.Table, row fixture.Row, useJSON bool) ([]string, []any, error) {
	cols := make([]string, 0, len(row.Header))
	vals := make([]any, 0, len(row.Header))
	for i, name := range row.Header {
		col := tbl.Column(name)
		if col == nil {
			continue
		}
		raw := row.Value(i)
		v, err := Coerce(col, raw, useJSON)
		if err != nil {
			return nil, nil, &CoercionError{Table: tbl.FullName(), Row: row.Line, Field: name, Value: raw, Kind: col.Kind, Err: err}
		}
		cols = append(cols, col.Name)
		vals = append(vals, v)
	}
	return cols, vals, nil
}
