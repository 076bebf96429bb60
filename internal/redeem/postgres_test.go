package redeem

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

func TestPostgresStoreLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := newPostgresStoreWithDB(db, zap.NewNop())

	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	redeemedAt := created.Add(30 * time.Minute)

	rows := sqlmock.NewRows([]string{
		"condition_id", "token_id", "market_label", "side", "created_at",
		"redeemed", "redeemed_at", "redeemed_amount",
		"attempt_count", "last_attempt_at", "last_error", "note",
	}).
		AddRow(testConditionID, "123", "BTC 12:00", "up", created,
			true, redeemedAt, 12.5, 2, redeemedAt, "", "redeemed in tx 0xabc").
		AddRow(testConditionID, "456", "BTC 12:15", "down", created,
			false, nil, 0.0, 1, nil, "connection refused", "")

	mock.ExpectQuery("SELECT condition_id, token_id").WillReturnRows(rows)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, types.SideUp, records[0].Side)
	assert.True(t, records[0].Redeemed)
	require.NotNil(t, records[0].RedeemedAt)
	assert.True(t, redeemedAt.Equal(*records[0].RedeemedAt))
	assert.InDelta(t, 12.5, records[0].RedeemedAmount, 1e-9)

	assert.Equal(t, types.SideDown, records[1].Side)
	assert.False(t, records[1].Redeemed)
	assert.Nil(t, records[1].RedeemedAt)
	assert.Equal(t, "connection refused", records[1].LastError)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := newPostgresStoreWithDB(db, zap.NewNop())

	rec := validRecord()
	rec.AttemptCount = 3
	rec.LastError = "execution reverted"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bet_records").
		WithArgs(
			rec.ConditionID, rec.TokenID, rec.MarketLabel, "up", rec.CreatedAt,
			false, nil, 0.0,
			3, nil, "execution reverted", "",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), []BetRecord{rec}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := newPostgresStoreWithDB(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bet_records").
		WillReturnError(sqlmock.ErrCancelled)
	mock.ExpectRollback()

	err = store.Save(context.Background(), []BetRecord{validRecord()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert bet record")
	require.NoError(t, mock.ExpectationsWereMet())
}
