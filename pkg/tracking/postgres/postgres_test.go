package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairtrack/pkg/tracking"
)

func TestRepository_Lookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db)
	ctx := context.Background()
	query := regexp.QuoteMeta("SELECT get_order_by_tracking_token($1)")

	mock.ExpectQuery(query).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"get_order_by_tracking_token"}).AddRow([]byte(`{"id":"o-1","status":"in_progress"}`)))

	snap, err := repo.Lookup(ctx, "tok-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"o-1","status":"in_progress"}`, string(snap))

	mock.ExpectQuery(query).
		WithArgs("tok-2").
		WillReturnRows(sqlmock.NewRows([]string{"get_order_by_tracking_token"}).AddRow(nil))

	snap, err = repo.Lookup(ctx, "tok-2")
	require.NoError(t, err)
	assert.Nil(t, snap)

	mock.ExpectQuery(query).
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err = repo.Lookup(ctx, "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "22P02")
	assert.Contains(t, err.Error(), tracking.ProcLookup)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Decide(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT approve_quote_by_token($1)")).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"approve_quote_by_token"}).AddRow(true))

	ok, err := repo.ApproveQuote(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT approve_quote_by_token($1)")).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"approve_quote_by_token"}).AddRow(false))

	ok, err = repo.ApproveQuote(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT reject_quote_by_token($1)")).
		WithArgs("tok-3").
		WillReturnRows(sqlmock.NewRows([]string{"reject_quote_by_token"}).AddRow(nil))

	ok, err = repo.RejectQuote(ctx, "tok-3")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT reject_quote_by_token($1)")).
		WithArgs("tok-4").
		WillReturnError(sqlmock.ErrCancelled)

	_, err = repo.RejectQuote(ctx, "tok-4")
	assert.ErrorIs(t, err, sqlmock.ErrCancelled)

	assert.NoError(t, mock.ExpectationsWereMet())
}
