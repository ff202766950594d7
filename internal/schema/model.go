package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchema marks reflection failures and DDL execution failures.
var ErrSchema = errors.New("schema error")

// SchemaError reports a table that cannot be mapped or a failed schema script.
type SchemaError struct {
	Table  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "schema error"
	if e.Table != "" {
		msg += fmt.Sprintf(" (table %s)", e.Table)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

func (e *SchemaError) Unwrap() error { return e.Err }

type Table struct {
	Schema       string
	Name         string
	Columns      []*Column
	ForeignKeys  []*ForeignKey
	Dependencies []string // referenced tables, for ordering
}

// FullName is the schema-qualified name as the caller wrote it.
func (t *Table) FullName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Column looks a column up by exact name, then case-insensitively
// (Oracle reports unquoted names upper case).
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// HasKey reports whether rows of the table can be identified by a primary or unique key.
func (t *Table) HasKey() bool {
	for _, c := range t.Columns {
		if c.IsPK || c.IsUnique {
			return true
		}
	}
	return false
}

type Column struct {
	Name       string
	RawType    string // type as reported by the catalog
	Kind       string // dialect.Kind* semantic type
	IsNullable bool
	IsPK       bool
	IsUnique   bool
	Meaning    string // guessed from the name, e.g. "email", "phone"
}

type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// SplitName splits "schema.table" on its last dot.
func SplitName(qualified string) (schemaName, table string) {
	q := strings.TrimSpace(qualified)
	if idx := strings.LastIndex(q, "."); idx >= 0 {
		return q[:idx], q[idx+1:]
	}
	return "", q
}
