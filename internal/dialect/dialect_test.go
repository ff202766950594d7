package dialect_test

import (
	"testing"
	"time"

	"db-fixture/internal/dialect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDialect_Families(t *testing.T) {
	cases := map[string]string{
		"postgres":         "postgres",
		"postgresql":       "postgres",
		"postgresql+pgx":   "postgres",
		"mysql+pymysql":    "mysql",
		"mssql+pyodbc":     "mssql",
		"sqlserver":        "mssql",
		"oracle+cx_oracle": "oracle",
		"sqlite":           "sqlite",
	}
	for in, want := range cases {
		d, err := dialect.GetDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, d.Name(), in)
	}

	_, err := dialect.GetDialect("couchbase")
	assert.Error(t, err)
}

func TestDefaultPorts(t *testing.T) {
	for name, port := range map[string]int{"postgres": 5432, "mysql": 3306, "mssql": 1433, "oracle": 1521, "sqlite": 0} {
		d, err := dialect.GetDialect(name)
		require.NoError(t, err)
		assert.Equal(t, port, d.DefaultPort(), name)
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", dialect.GeneratePlaceholders(3, (&dialect.PostgresDialect{}).Placeholder))
	assert.Equal(t, "?, ?", dialect.GeneratePlaceholders(2, (&dialect.MysqlDialect{}).Placeholder))
	assert.Equal(t, "@p1, @p2", dialect.GeneratePlaceholders(2, (&dialect.MSSQLDialect{}).Placeholder))
	assert.Equal(t, ":1, :2", dialect.GeneratePlaceholders(2, (&dialect.OracleDialect{}).Placeholder))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"my""table"`, (&dialect.PostgresDialect{}).QuoteIdentifier(`my"table`))
	assert.Equal(t, "`my``table`", (&dialect.MysqlDialect{}).QuoteIdentifier("my`table"))
	assert.Equal(t, "[a]]b]", (&dialect.MSSQLDialect{}).QuoteIdentifier("a]b"))
	assert.Equal(t, "user_id", (&dialect.OracleDialect{}).QuoteIdentifier("user_id"))
	assert.Equal(t, `"user id"`, (&dialect.OracleDialect{}).QuoteIdentifier("user id"))
}

func TestQualifiedName(t *testing.T) {
	pg := &dialect.PostgresDialect{}
	assert.Equal(t, `"foo"`, pg.QualifiedName("", "foo"))
	assert.Equal(t, `"app"."foo"`, pg.QualifiedName("app", "foo"))
}

func TestInsertQuery(t *testing.T) {
	pg := &dialect.PostgresDialect{}
	got := pg.InsertQuery(`"foo"`, []string{"user_id", "email"})
	assert.Equal(t, `INSERT INTO "foo" ("user_id", "email") VALUES ($1, $2)`, got)
}

func TestExistsQuery_NullAware(t *testing.T) {
	pg := &dialect.PostgresDialect{}
	query, args := pg.ExistsQuery(`"foo"`, []dialect.Cond{
		{Column: "user_id", Value: int64(1)},
		{Column: "email", Value: nil},
		{Column: "name", Value: "x"},
	})
	assert.Equal(t, `SELECT 1 FROM "foo" WHERE "user_id" = $1 AND "email" IS NULL AND "name" = $2 LIMIT 1`, query)
	assert.Equal(t, []any{int64(1), "x"}, args)

	ms := &dialect.MSSQLDialect{}
	query, _ = ms.ExistsQuery("[foo]", []dialect.Cond{{Column: "id", Value: 1}})
	assert.Equal(t, "SELECT TOP 1 1 FROM [foo] WHERE [id] = @p1", query)

	ora := &dialect.OracleDialect{}
	query, _ = ora.ExistsQuery("foo", []dialect.Cond{{Column: "id", Value: 1}})
	assert.Equal(t, "SELECT * FROM (SELECT 1 FROM foo WHERE id = :1) WHERE ROWNUM <= 1", query)
}

func TestNormalizeType(t *testing.T) {
	pg := &dialect.PostgresDialect{}
	assert.Equal(t, dialect.KindInteger, pg.NormalizeType("int4"))
	assert.Equal(t, dialect.KindText, pg.NormalizeType("varchar"))
	assert.Equal(t, dialect.KindJSON, pg.NormalizeType("jsonb"))
	assert.Equal(t, dialect.KindDateTime, pg.NormalizeType("timestamptz"))
	assert.Equal(t, dialect.KindDate, pg.NormalizeType("date"))
	assert.Equal(t, dialect.KindDecimal, pg.NormalizeType("numeric"))
	assert.Equal(t, dialect.KindText, pg.NormalizeType("_int4"))

	my := &dialect.MysqlDialect{}
	assert.Equal(t, dialect.KindInteger, my.NormalizeType("tinyint"))
	assert.Equal(t, dialect.KindDateTime, my.NormalizeType("datetime"))
	assert.Equal(t, dialect.KindText, my.NormalizeType("enum"))

	ora := &dialect.OracleDialect{}
	assert.Equal(t, dialect.KindText, ora.NormalizeType("VARCHAR2"))
	assert.Equal(t, dialect.KindDateTime, ora.NormalizeType("DATE"))
	assert.Equal(t, dialect.KindInteger, ora.NormalizeType("INTEGER"))

	lite := &dialect.SQLiteDialect{}
	assert.Equal(t, dialect.KindInteger, lite.NormalizeType("INTEGER"))
	assert.Equal(t, dialect.KindText, lite.NormalizeType("VARCHAR(36)"))
	assert.Equal(t, dialect.KindFloat, lite.NormalizeType("REAL"))
	assert.Equal(t, dialect.KindBoolean, lite.NormalizeType("BOOLEAN"))
}

func TestSQLiteBindValue(t *testing.T) {
	lite := &dialect.SQLiteDialect{}
	assert.Equal(t, "2020-01-02", lite.BindValue(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2020-01-02 03:04:05", lite.BindValue(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, int64(7), lite.BindValue(int64(7)))
}
