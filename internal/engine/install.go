package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"db-fixture/internal/dialect"
)

// InstallSchema runs a DDL script once, as a single batch when the driver
// accepts several statements per call and statement by statement otherwise.
// Statements already executed are not rolled back on failure.
func InstallSchema(ctx context.Context, db *sql.DB, d dialect.Dialect, ddl string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(ddl) == "" {
		return nil
	}

	if d.SupportsMultiStatement() {
		logger.Debug("installing schema", "dialect", d.Name(), "bytes", len(ddl))
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return &SchemaError{Reason: "failed to execute schema script", Err: err}
		}
		return nil
	}

	stmts := SplitStatements(ddl)
	logger.Debug("installing schema", "dialect", d.Name(), "statements", len(stmts))
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return &SchemaError{Reason: fmt.Sprintf("failed to execute schema statement %d: %s", i+1, firstLine(stmt)), Err: err}
		}
	}
	return nil
}

// SplitStatements splits a script on semicolons outside quotes and comments.
// A line holding only "/" also ends a statement (SQL*Plus style), which lets
// PL/SQL blocks keep their inner semicolons.
func SplitStatements(script string) []string {
	var stmts []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	var quote byte // ' or " while inside a literal or quoted identifier
	lineComment, blockComment := false, false
	plsql := false

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case lineComment:
			cur.WriteByte(c)
			if c == '\n' {
				lineComment = false
			}
		case blockComment:
			cur.WriteByte(c)
			if c == '*' && i+1 < len(script) && script[i+1] == '/' {
				cur.WriteByte('/')
				i++
				blockComment = false
			}
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				if i+1 < len(script) && script[i+1] == quote {
					cur.WriteByte(c)
					i++
				} else {
					quote = 0
				}
			}
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			lineComment = true
			cur.WriteByte(c)
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			blockComment = true
			cur.WriteByte(c)
		case c == '/' && onOwnLine(script, i):
			flush()
			plsql = false
		case c == ';' && !plsql:
			if startsBlock(cur.String()) {
				plsql = true
				cur.WriteByte(c)
				continue
			}
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return stmts
}

var blockPrefixes = []string{
	"BEGIN ", "DECLARE ",
	"CREATE OR REPLACE PROCEDURE ", "CREATE OR REPLACE FUNCTION ", "CREATE OR REPLACE TRIGGER ", "CREATE OR REPLACE PACKAGE ",
	"CREATE PROCEDURE ", "CREATE FUNCTION ", "CREATE TRIGGER ", "CREATE PACKAGE ",
}

// startsBlock reports whether the statement so far opens a PL/SQL unit that is
// terminated by "/" rather than by its first semicolon.
func startsBlock(stmt string) bool {
	s := strings.ToUpper(strings.Join(strings.Fields(stmt), " ")) + " "
	for _, prefix := range blockPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func onOwnLine(s string, i int) bool {
	start := strings.LastIndexByte(s[:i], '\n') + 1
	if strings.TrimSpace(s[start:i]) != "" {
		return false
	}
	end := strings.IndexByte(s[i+1:], '\n')
	rest := s[i+1:]
	if end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest) == ""
}

func firstLine(stmt string) string {
	if idx := strings.IndexByte(stmt, '\n'); idx >= 0 {
		return stmt[:idx] + " ..."
	}
	return stmt
}
