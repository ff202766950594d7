package engine

import (
	"context"
	"regexp"
	"testing"

	"db-fixture/internal/schema"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean_SQLite(t *testing.T) {
	db := newDB(t, shopDDL)
	ctx := context.Background()
	populate(t, db, "users", "id,email\n1,a@x.com\n2,b@x.com\n")
	populate(t, db, "orders", "id,user_id,price,paid\n1,1,1.00,true\n")

	tables, err := schema.Analyze(ctx, db, lite, "", nil)
	require.NoError(t, err)

	n, err := Clean(ctx, db, lite, tables, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, name := range []string{"users", "orders"} {
		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+name).Scan(&count))
		assert.Zero(t, count, name)
	}
}

func TestClean_ReverseOrderAndSkipsFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tables := []*schema.Table{{Name: "users"}, {Name: "orders"}, {Name: "items"}}

	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE "items" CASCADE`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE "orders" CASCADE`)).WillReturnError(assert.AnError)
	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE "users" CASCADE`)).WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := Clean(context.Background(), db, pg, tables, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
