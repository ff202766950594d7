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

var pg = &dialect.PostgresDialect{}

func expectFooColumns(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns c")).
		WithArgs("public", "foo").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "udt_name", "is_nullable", "column_key"}).
			AddRow("user_id", "int4", "NO", "PRI").
			AddRow("email", "varchar", "YES", ""))
}

func TestPopulate_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	insert := regexp.QuoteMeta(`INSERT INTO "foo" ("user_id", "email") VALUES ($1, $2)`)
	expectFooColumns(mock)
	mock.ExpectBegin()
	mock.ExpectExec(insert).WithArgs(int64(1), "a@x.com").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs(int64(2), nil).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	n, err := Populate(context.Background(), db, pg, "foo", csvOf("user_id,email\n1,a@x.com\n2,\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPopulate_PostgresExecFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectFooColumns(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "foo"`)).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = Populate(context.Background(), db, pg, "foo", csvOf("user_id,email\n1,a@x.com\n"), Options{})
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to insert row 1 into foo")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPopulate_PostgresCoercionFailureNeverBegins(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectFooColumns(mock)

	_, err = Populate(context.Background(), db, pg, "foo", csvOf("user_id,email\nx,a@x.com\n"), Options{})
	require.ErrorIs(t, err, ErrCoercion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_PostgresSubsetUsesExistsQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectFooColumns(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM "foo" WHERE "user_id" = $1 AND "email" = $2 LIMIT 1`)).
		WithArgs(int64(1), "a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM "foo" WHERE "user_id" = $1 AND "email" IS NULL LIMIT 1`)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	err = Verify(context.Background(), db, pg, "foo", csvOf("user_id,email\n1,a@x.com\n2,\n"), Options{})
	verr := verificationError(t, err)
	require.Len(t, verr.Outcomes, 1)
	assert.Equal(t, MissingInDb, verr.Outcomes[0].Kind)
	assert.Equal(t, 2, verr.Outcomes[0].Row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_PostgresStrict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectFooColumns(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "foo"`)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email"}).
			AddRow(int64(1), "a@x.com").
			AddRow(int64(2), nil))

	err = Verify(context.Background(), db, pg, "foo", csvOf("user_id,email\n1,a@x.com\n2,\n"), Options{Strict: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
