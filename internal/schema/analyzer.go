package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"db-fixture/internal/dialect"
)

// Reflect discovers the columns and key constraints of one table from the live
// catalog. qualifiedName may carry a schema ("app.users"). The result is not cached.
func Reflect(ctx context.Context, db *sql.DB, d dialect.Dialect, qualifiedName string) (*Table, error) {
	schemaName, name := SplitName(qualifiedName)
	t, err := reflectColumns(ctx, db, d, schemaName, name)
	if err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, &SchemaError{Table: qualifiedName, Reason: "table not found"}
	}
	if !t.HasKey() {
		return nil, &SchemaError{Table: qualifiedName, Reason: "can't map table without primary key"}
	}
	return t, nil
}

func reflectColumns(ctx context.Context, db *sql.DB, d dialect.Dialect, schemaName, name string) (*Table, error) {
	t := &Table{Schema: schemaName, Name: name, Dependencies: []string{}}

	query, args := d.ColumnsQuery(schemaName, name)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", t.FullName(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var cName, rawType, isNull, cKey sql.NullString
		if err := rows.Scan(&cName, &rawType, &isNull, &cKey); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", t.FullName(), err)
		}
		if !cName.Valid {
			continue
		}
		key := strings.ToUpper(cKey.String)
		t.Columns = append(t.Columns, &Column{
			Name:       cName.String,
			RawType:    rawType.String,
			Kind:       d.NormalizeType(rawType.String),
			IsNullable: isNull.String == "YES",
			IsPK:       strings.Contains(key, "PRI"),
			IsUnique:   strings.Contains(key, "UNI"),
			Meaning:    AnalyzeMeaning(cName.String, ""),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", t.FullName(), err)
	}
	return t, nil
}

// Analyze reflects the named tables (every table of the schema when names is
// empty), links their foreign keys and returns them parents first.
func Analyze(ctx context.Context, db *sql.DB, d dialect.Dialect, schemaName string, names []string) ([]*Table, error) {
	if len(names) == 0 {
		listed, err := d.ListTables(ctx, db, schemaName)
		if err != nil {
			return nil, err
		}
		names = listed
	}

	// normalized keys for case-insensitive matching (Oracle)
	tableMap := make(map[string]*Table, len(names))
	tables := make([]*Table, 0, len(names))
	for _, name := range names {
		s, n := SplitName(name)
		if s == "" {
			s = schemaName
		}
		t, err := reflectColumns(ctx, db, d, s, n)
		if err != nil {
			return nil, err
		}
		if len(t.Columns) == 0 {
			return nil, &SchemaError{Table: name, Reason: "table not found"}
		}
		tableMap[strings.ToUpper(n)] = t
		tables = append(tables, t)
	}

	query, args := d.ForeignKeysQuery(schemaName)
	fkRows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var tName, cConst, cName, rTable, rCol sql.NullString
		if err := fkRows.Scan(&tName, &cConst, &cName, &rTable, &rCol); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if !tName.Valid || !rTable.Valid || strings.EqualFold(tName.String, rTable.String) {
			continue
		}
		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok {
			continue
		}
		// references outside the analyzed set cannot be ordered
		ref, ok := tableMap[strings.ToUpper(rTable.String)]
		if !ok {
			continue
		}
		if !containsName(t.Dependencies, ref.Name) {
			t.Dependencies = append(t.Dependencies, ref.Name)
		}
		t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
			Column:    cName.String,
			RefTable:  ref.Name,
			RefColumn: rCol.String,
		})
	}
	if err := fkRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys: %w", err)
	}

	return SortTablesByFKCount(tables), nil
}

// SortTablesByFKCount orders tables so referenced tables come first.
// Cycles are broken greedily: the table with the fewest unresolved references
// wins, tables taking part in a two-way cycle are preferred, ties go to the name.
func SortTablesByFKCount(tables []*Table) []*Table {
	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	sorted := make([]*Table, 0, len(tables))
	done := make(map[string]bool, len(tables))

	for len(sorted) < len(tables) {
		added := false
		for _, t := range tables {
			if done[t.Name] || pending(t, done, byName) > 0 {
				continue
			}
			sorted = append(sorted, t)
			done[t.Name] = true
			added = true
		}
		if added {
			continue
		}

		var candidates []*Table
		for _, t := range tables {
			if !done[t.Name] {
				candidates = append(candidates, t)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			si, sj := cycleScore(candidates[i], done, byName), cycleScore(candidates[j], done, byName)
			if si != sj {
				return si > sj
			}
			return candidates[i].Name < candidates[j].Name
		})
		best := candidates[0]
		slog.Debug("breaking circular dependency", "table", best.Name, "score", cycleScore(best, done, byName))
		sorted = append(sorted, best)
		done[best.Name] = true
	}
	return sorted
}

// pending counts references to known tables not yet placed.
func pending(t *Table, done map[string]bool, byName map[string]*Table) int {
	n := 0
	for _, dep := range t.Dependencies {
		if _, known := byName[dep]; known && !done[dep] {
			n++
		}
	}
	return n
}

func cycleScore(t *Table, done map[string]bool, byName map[string]*Table) int {
	score := -100 * pending(t, done, byName)
	for _, dep := range t.Dependencies {
		if done[dep] {
			continue
		}
		if ref, ok := byName[dep]; ok && containsName(ref.Dependencies, t.Name) {
			return score + 500
		}
	}
	return score
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
