package mvrefresher

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockRefresher(t *testing.T) (*Refresher, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCheckAndRefreshIfNeeded_NoSignalIsNoop(t *testing.T) {
	r, mock := newMockRefresher(t)

	err := r.CheckAndRefreshIfNeeded(context.Background())

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndRefreshIfNeeded_WaitsOutDebounce(t *testing.T) {
	r, mock := newMockRefresher(t)
	r.debounce = 20 * time.Millisecond
	r.SignalContractsChanged("okx")

	require.NoError(t, r.CheckAndRefreshIfNeeded(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet(), "refresh must not fire before the debounce window elapses")

	mock.ExpectExec("REFRESH MATERIALIZED VIEW CONCURRENTLY contract_enriched").WillReturnResult(sqlmock.NewResult(0, 0))
	time.Sleep(25 * time.Millisecond)

	require.NoError(t, r.CheckAndRefreshIfNeeded(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndRefreshIfNeeded_FailedRefreshLeavesPendingForRetry(t *testing.T) {
	r, mock := newMockRefresher(t)
	r.debounce = 0
	r.SignalContractsChanged("okx")

	mock.ExpectExec("REFRESH MATERIALIZED VIEW CONCURRENTLY contract_enriched").WillReturnError(assertError{})

	err := r.CheckAndRefreshIfNeeded(context.Background())
	require.Error(t, err)

	mock.ExpectExec("REFRESH MATERIALIZED VIEW CONCURRENTLY contract_enriched").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, r.CheckAndRefreshIfNeeded(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
