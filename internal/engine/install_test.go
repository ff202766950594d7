package engine

import (
	"context"
	"regexp"
	"testing"

	"db-fixture/internal/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"simple", "CREATE TABLE a (id INT); CREATE TABLE b (id INT);", []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}},
		{"no trailing semicolon", "INSERT INTO a VALUES (1)", []string{"INSERT INTO a VALUES (1)"}},
		{"quoted semicolon", "INSERT INTO a VALUES ('x;y');", []string{"INSERT INTO a VALUES ('x;y')"}},
		{"escaped quote", "INSERT INTO a VALUES ('it''s;');SELECT 1", []string{"INSERT INTO a VALUES ('it''s;')", "SELECT 1"}},
		{"quoted identifier", `CREATE TABLE "we;ird" (id INT);`, []string{`CREATE TABLE "we;ird" (id INT)`}},
		{"line comment", "-- setup; tables\nCREATE TABLE a (id INT);", []string{"-- setup; tables\nCREATE TABLE a (id INT)"}},
		{"block comment", "/* a; b */ SELECT 1;", []string{"/* a; b */ SELECT 1"}},
		{"empty statements", ";;  ;", nil},
		{
			"plsql block",
			"CREATE TABLE a (id INT);\nBEGIN\n  INSERT INTO a VALUES (1);\n  INSERT INTO a VALUES (2);\nEND;\n/\nSELECT 1 FROM dual;",
			[]string{
				"CREATE TABLE a (id INT)",
				"BEGIN\n  INSERT INTO a VALUES (1);\n  INSERT INTO a VALUES (2);\nEND;",
				"SELECT 1 FROM dual",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.script))
		})
	}
}

func TestInstallSchema_SingleBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ddl := "CREATE TABLE foo (id INT PRIMARY KEY); CREATE TABLE bar (id INT PRIMARY KEY);"
	mock.ExpectExec(regexp.QuoteMeta(ddl)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, InstallSchema(context.Background(), db, &dialect.PostgresDialect{}, ddl, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallSchema_StatementByStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE foo (id NUMBER PRIMARY KEY)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE bar (id NUMBER PRIMARY KEY)")).WillReturnError(assert.AnError)

	err = InstallSchema(context.Background(), db, &dialect.OracleDialect{},
		"CREATE TABLE foo (id NUMBER PRIMARY KEY);\nCREATE TABLE bar (id NUMBER PRIMARY KEY);", nil)
	require.ErrorIs(t, err, ErrSchema)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "statement 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallSchema_Blank(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, InstallSchema(context.Background(), db, &dialect.PostgresDialect{}, "  \n", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallSchema_SQLite(t *testing.T) {
	db := newDB(t, "CREATE TABLE a (id INTEGER PRIMARY KEY); INSERT INTO a VALUES (1); INSERT INTO a VALUES (2);")

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM a").Scan(&n))
	assert.Equal(t, 2, n)

	err := InstallSchema(context.Background(), db, lite, "CREATE TABLE broken (", nil)
	assert.ErrorIs(t, err, ErrSchema)
}
