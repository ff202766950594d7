package engine

import (
	"errors"
	"fmt"
	"strings"

	"db-fixture/internal/schema"
)

var (
	// ErrSchema marks unmappable tables and failed schema scripts.
	ErrSchema = schema.ErrSchema
	// ErrCoercion marks CSV values that do not fit their column.
	ErrCoercion = errors.New("coercion error")
	// ErrVerification marks a table whose content differs from its fixture.
	ErrVerification = errors.New("verification failed")
)

type SchemaError = schema.SchemaError

// CoercionError names the table, the 1-based data row and the field that could not be converted.
type CoercionError struct {
	Table string
	Row   int
	Field string
	Value string
	Kind  string
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("coercion error: table %s, row %d, field %q: cannot convert %q to %s: %v",
		e.Table, e.Row, e.Field, e.Value, e.Kind, e.Err)
}

func (e *CoercionError) Is(target error) bool { return target == ErrCoercion }

func (e *CoercionError) Unwrap() error { return e.Err }

// OutcomeKind is the verdict for one compared row.
type OutcomeKind int

const (
	Match OutcomeKind = iota
	Mismatch
	MissingInDb
	UnexpectedInDb
)

func (k OutcomeKind) String() string {
	switch k {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	case MissingInDb:
		return "missing in db"
	case UnexpectedInDb:
		return "unexpected in db"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Field is a named value in column order.
type Field struct {
	Name  string
	Value string
}

// Outcome is one discrepancy. Row is the 1-based position in the compared
// sequence. For Mismatch, Field/Expected/Actual describe the differing column
// and Key identifies the expected row by its key columns.
type Outcome struct {
	Kind     OutcomeKind
	Row      int
	Field    string
	Expected string
	Actual   string
	Absent   bool // the column does not exist in the table row
	Key      []Field
	Values   []Field // expected row (MissingInDb) or table row (UnexpectedInDb)
}

func (o Outcome) String() string {
	switch o.Kind {
	case Mismatch:
		where := fmt.Sprintf("row %d", o.Row)
		if len(o.Key) > 0 {
			where += " (" + joinFields(o.Key) + ")"
		}
		if o.Absent {
			return fmt.Sprintf("%s: mismatch on %s: expected %q, column not present", where, o.Field, o.Expected)
		}
		return fmt.Sprintf("%s: mismatch on %s: expected %q, actual %q", where, o.Field, o.Expected, o.Actual)
	case MissingInDb:
		return fmt.Sprintf("row %d: missing in db: %s", o.Row, joinFields(o.Values))
	case UnexpectedInDb:
		return fmt.Sprintf("row %d: unexpected in db: %s", o.Row, joinFields(o.Values))
	default:
		return fmt.Sprintf("row %d: %s", o.Row, o.Kind)
	}
}

func joinFields(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + "=" + f.Value
	}
	return strings.Join(parts, ", ")
}

// VerificationError carries every discrepancy found in one table.
type VerificationError struct {
	Table    string
	Strict   bool
	Outcomes []Outcome
}

func (e *VerificationError) Error() string {
	mode := "non-strict"
	if e.Strict {
		mode = "strict"
	}
	return fmt.Sprintf("verification failed for table %s (%s): %d discrepancies\n%s", e.Table, mode, len(e.Outcomes), e.Report())
}

func (e *VerificationError) Is(target error) bool { return target == ErrVerification }

// Report lists the discrepancies one per line.
func (e *VerificationError) Report() string {
	var b strings.Builder
	for _, o := range e.Outcomes {
		b.WriteString("  ")
		b.WriteString(o.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Count returns how many discrepancies of the given kind were recorded.
func (e *VerificationError) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range e.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}
