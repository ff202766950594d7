package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"db-fixture/internal/dialect"
	"db-fixture/internal/schema"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FormatValue renders a scanned database value the way fixtures spell it.
// NULL renders as the empty string, the same text that loads as NULL.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return formatTime(val)
	case decimal.Decimal:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return formatDateTime(t)
}

func formatDateTime(t time.Time) string {
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05.000000")
}

// decimalScale matches the scale of a declared type such as DECIMAL(10,2).
var decimalScale = regexp.MustCompile(`\(\s*\d+\s*,\s*(\d+)\s*\)`)

// CanonicalText renders a table value as the single text strict verification
// accepts for col: booleans as true/false, decimals at the declared scale,
// dates as 2006-01-02, datetimes as 2006-01-02 15:04:05 and JSON compacted.
// Only the database side is normalized; fixture text is compared verbatim.
func CanonicalText(col *schema.Column, v any) string {
	if col == nil || v == nil {
		return FormatValue(v)
	}
	text := FormatValue(v)

	switch col.Kind {
	case dialect.KindInteger:
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
	case dialect.KindFloat:
		if f, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case dialect.KindDecimal:
		return canonicalDecimal(col, v, text)
	case dialect.KindBoolean:
		switch b := v.(type) {
		case bool:
			return strconv.FormatBool(b)
		case int64:
			return strconv.FormatBool(b != 0)
		}
		if b, err := strconv.ParseBool(strings.TrimSpace(text)); err == nil {
			return strconv.FormatBool(b)
		}
	case dialect.KindDate:
		if t, ok := tableTime(v, text); ok {
			return t.Format("2006-01-02")
		}
	case dialect.KindDateTime:
		if t, ok := tableTime(v, text); ok {
			return formatDateTime(t)
		}
	case dialect.KindTime:
		if t, ok := v.(time.Time); ok {
			if t.Nanosecond() == 0 {
				return t.Format("15:04:05")
			}
			return t.Format("15:04:05.000000")
		}
	case dialect.KindUUID:
		if id, err := uuid.Parse(strings.TrimSpace(text)); err == nil {
			return id.String()
		}
	case dialect.KindJSON:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(text)); err == nil {
			return buf.String()
		}
	}
	return text
}

func canonicalDecimal(col *schema.Column, v any, text string) string {
	var d decimal.Decimal
	var err error
	switch n := v.(type) {
	case decimal.Decimal:
		d = n
	case float64:
		d = decimal.NewFromFloat(n)
	case int64:
		d = decimal.NewFromInt(n)
	default:
		d, err = decimal.NewFromString(strings.TrimSpace(text))
	}
	if err != nil {
		return text
	}
	if m := decimalScale.FindStringSubmatch(col.RawType); m != nil {
		scale, _ := strconv.Atoi(m[1])
		return d.StringFixed(int32(scale))
	}
	switch v.(type) {
	case string, []byte:
		// driver text already carries the column's scale
		return text
	}
	return d.String()
}

// tableTime reads a stored date or datetime as its wall clock, without the session zone.
func tableTime(v any, text string) (time.Time, bool) {
	t, ok := v.(time.Time)
	if !ok {
		var err error
		if t, err = dateparse.ParseIn(strings.TrimSpace(text), time.UTC); err != nil {
			return time.Time{}, false
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true
}
