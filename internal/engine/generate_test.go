package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"testing"

	"db-fixture/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopDDL = `
CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL, created_at DATE);
CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id), price DECIMAL(10,2), paid BOOLEAN);
`

func analyzeShop(t *testing.T) []*schema.Table {
	t.Helper()
	db := newDB(t, shopDDL)
	tables, err := schema.Analyze(context.Background(), db, lite, "", nil)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, "users", tables[0].Name)
	return tables
}

func generateAll(t *testing.T, seed int64, tables []*schema.Table, n int) map[string]string {
	t.Helper()
	g := NewGenerator(seed)
	out := make(map[string]string, len(tables))
	for _, tbl := range tables {
		var buf bytes.Buffer
		require.NoError(t, g.Generate(tbl, n, &buf, nil))
		out[tbl.Name] = buf.String()
	}
	return out
}

func TestGenerator_Deterministic(t *testing.T) {
	tables := analyzeShop(t)

	first := generateAll(t, 42, tables, 5)
	second := generateAll(t, 42, tables, 5)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, generateAll(t, 7, tables, 5))
}

func TestGenerator_KeysAndReferences(t *testing.T) {
	tables := analyzeShop(t)

	rows := 0
	g := NewGenerator(1)
	var users, orders bytes.Buffer
	require.NoError(t, g.Generate(tables[0], 4, &users, func() { rows++ }))
	require.NoError(t, g.Generate(tables[1], 10, &orders, func() { rows++ }))
	assert.Equal(t, 14, rows)

	userRecs, err := csv.NewReader(&users).ReadAll()
	require.NoError(t, err)
	require.Len(t, userRecs, 5)
	assert.Equal(t, []string{"id", "email", "created_at"}, userRecs[0])
	for i, rec := range userRecs[1:] {
		assert.Equal(t, strconv.Itoa(i+1), rec[0])
		assert.Contains(t, rec[1], "@")
	}

	orderRecs, err := csv.NewReader(&orders).ReadAll()
	require.NoError(t, err)
	require.Len(t, orderRecs, 11)
	for _, rec := range orderRecs[1:] {
		id, err := strconv.Atoi(rec[1])
		require.NoError(t, err)
		assert.True(t, id >= 1 && id <= 4, "user_id %d outside generated users", id)
	}
}

func TestGenerator_OutputLoadsAndVerifies(t *testing.T) {
	db := newDB(t, shopDDL)
	ctx := context.Background()
	tables, err := schema.Analyze(ctx, db, lite, "", nil)
	require.NoError(t, err)

	files := generateAll(t, 99, tables, 20)
	for _, tbl := range tables {
		n, err := Populate(ctx, db, lite, tbl.Name, csvOf(files[tbl.Name]), Options{})
		require.NoError(t, err)
		assert.Equal(t, 20, n)
	}
	for _, tbl := range tables {
		assert.NoError(t, Verify(ctx, db, lite, tbl.Name, csvOf(files[tbl.Name]), Options{Strict: true}))
	}
}
