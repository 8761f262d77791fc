package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestAssetRepo_EnsureExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepo(db, time.Second)

	mock.ExpectExec("INSERT INTO asset").WithArgs("BTC").WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.EnsureExists(context.Background(), "BTC"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepo(db, time.Second)

	rows := sqlmock.NewRows([]string{"name"}).AddRow("BTC").AddRow("ETH")
	mock.ExpectQuery("SELECT name FROM asset").WillReturnRows(rows)

	out, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "BTC", out[0].Name)
}

func TestSectionRepo_EnsureExists_UpsertsSettings(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSectionRepo(db, time.Second)

	mock.ExpectExec("INSERT INTO section").
		WithArgs("okx", []byte(`{"fetch_step_hours":8}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.EnsureExists(context.Background(), "okx", []byte(`{"fetch_step_hours":8}`))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepo_Get_NotFoundReturnsNilNoError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSectionRepo(db, time.Second)

	mock.ExpectQuery("SELECT name, settings FROM section").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"name", "settings"}))

	s, err := repo.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(assertErr{}))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
