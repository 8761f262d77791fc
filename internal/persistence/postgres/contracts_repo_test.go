package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptorun/internal/domain"
)

func TestContractRepo_UpsertMany_EmptyIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContractRepo(db, time.Second)

	require.NoError(t, repo.UpsertMany(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepo_UpsertMany_CommitsTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContractRepo(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO contract")
	mock.ExpectExec("INSERT INTO contract").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO contract").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpsertMany(context.Background(), []domain.ContractInfo{
		{AssetName: "BTC", QuoteName: "USDT", SectionName: "okx", FundingInterval: 8},
		{AssetName: "ETH", QuoteName: "USDT", SectionName: "okx", FundingInterval: 8},
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepo_UpsertMany_RollsBackOnExecError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContractRepo(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO contract")
	mock.ExpectExec("INSERT INTO contract").WillReturnError(assertErr{})
	mock.ExpectRollback()

	err := repo.UpsertMany(context.Background(), []domain.ContractInfo{
		{AssetName: "BTC", QuoteName: "USDT", SectionName: "okx", FundingInterval: 8},
	})

	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepo_MarkDeprecated_OnlyFlipsStaleContracts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContractRepo(db, time.Second)

	staleID := uuid.New()
	liveID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "asset_name", "quote_name"}).
		AddRow(staleID, "DOGE", "USDT").
		AddRow(liveID, "BTC", "USDT")
	mock.ExpectQuery("SELECT id, asset_name, quote_name FROM contract").
		WithArgs("okx").
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE contract SET deprecated = true WHERE id = \\$1").
		WithArgs(staleID).
		WillReturnResult(sqlmock.NewResult(1, 1))

	live := map[[2]string]bool{{"BTC", "USDT"}: true}
	err := repo.MarkDeprecated(context.Background(), "okx", live)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepo_GetByID_NotFoundReturnsNilNoError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContractRepo(db, time.Second)

	id := uuid.New()
	mock.ExpectQuery("SELECT id, asset_name, section_name, quote_name, funding_interval, deprecated, synced").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "asset_name", "section_name", "quote_name", "funding_interval", "deprecated", "synced"}))

	c, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestContractRepo_GetActiveBySection_ScansRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContractRepo(db, time.Second)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "asset_name", "section_name", "quote_name", "funding_interval", "deprecated", "synced"}).
		AddRow(id, "BTC", "okx", "USDT", 8, false, true)
	mock.ExpectQuery("SELECT id, asset_name, section_name, quote_name, funding_interval, deprecated, synced FROM contract WHERE section_name = \\$1 AND NOT deprecated").
		WithArgs("okx").
		WillReturnRows(rows)

	out, err := repo.GetActiveBySection(context.Background(), "okx")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "BTC", out[0].AssetName)
	assert.True(t, out[0].Synced)
}
