package redeem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

func newFileLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.json")
	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)

	ledger, err := NewLedger(context.Background(), store, zap.NewNop())
	require.NoError(t, err)
	return ledger, path
}

func recordWithToken(tokenID string) BetRecord {
	rec := validRecord()
	rec.TokenID = tokenID
	return rec
}

func TestLedgerInsertIdempotent(t *testing.T) {
	ledger, _ := newFileLedger(t)
	ctx := context.Background()

	rec := validRecord()
	require.NoError(t, ledger.Insert(ctx, rec))

	// Same (conditionId, tokenId), different label: still a no-op.
	dup := rec
	dup.MarketLabel = "different label"
	require.NoError(t, ledger.Insert(ctx, dup))

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.Equal(t, rec.MarketLabel, records[0].MarketLabel)
}

func TestLedgerInsertRejectsInvalid(t *testing.T) {
	ledger, _ := newFileLedger(t)

	rec := validRecord()
	rec.ConditionID = "not-hex"
	err := ledger.Insert(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bet record")
	assert.Empty(t, ledger.Records())
}

func TestLedgerRoundTrip(t *testing.T) {
	ledger, path := newFileLedger(t)
	ctx := context.Background()

	want := make(map[string]BetRecord)
	for i := range 5 {
		rec := recordWithToken(fmt.Sprintf("100%d", i))
		rec.CreatedAt = rec.CreatedAt.Add(time.Duration(i) * time.Minute)
		require.NoError(t, ledger.Insert(ctx, rec))
		want[rec.Key()] = rec
	}

	// A fresh ledger over the same file sees the identical record set.
	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	reloaded, err := NewLedger(ctx, store, zap.NewNop())
	require.NoError(t, err)

	got := reloaded.Records()
	require.Len(t, got, len(want))
	for _, rec := range got {
		expected, ok := want[rec.Key()]
		require.True(t, ok, "unexpected record %s", rec.Key())
		assert.Equal(t, expected.MarketLabel, rec.MarketLabel)
		assert.Equal(t, expected.Side, rec.Side)
		assert.True(t, expected.CreatedAt.Equal(rec.CreatedAt))
	}
}

func TestLedgerLoadMissingFile(t *testing.T) {
	ledger, _ := newFileLedger(t)
	assert.Empty(t, ledger.Records())
	assert.Equal(t, 0, ledger.PendingCount())
}

func TestLedgerLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)

	ledger, err := NewLedger(context.Background(), store, zap.NewNop())
	require.NoError(t, err, "malformed ledger must behave as empty, not crash")
	assert.Empty(t, ledger.Records())
}

func TestLedgerUpdatePersists(t *testing.T) {
	ledger, path := newFileLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.Insert(ctx, validRecord()))

	err := ledger.Update(ctx, func(records []*BetRecord) error {
		require.Len(t, records, 1)
		records[0].markRedeemed(time.Now(), 7.0, "no tokens")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.PendingCount())

	// Mutation reached disk.
	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.True(t, loaded[0].Redeemed)
	assert.InDelta(t, 7.0, loaded[0].RedeemedAmount, 1e-9)
}

func TestLedgerUpdateSnapshotOrdering(t *testing.T) {
	ledger, _ := newFileLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		rec := recordWithToken(fmt.Sprintf("%d", 300-i))
		rec.CreatedAt = base.Add(time.Duration(3-i) * time.Minute)
		require.NoError(t, ledger.Insert(ctx, rec))
	}

	var seen []time.Time
	require.NoError(t, ledger.Update(ctx, func(records []*BetRecord) error {
		for _, rec := range records {
			seen = append(seen, rec.CreatedAt)
		}
		return nil
	}))

	require.Len(t, seen, 3)
	for i := 1; i < len(seen); i++ {
		assert.False(t, seen[i].Before(seen[i-1]), "snapshot must be ordered by creation time")
	}
}

func TestLedgerConcurrentInserts(t *testing.T) {
	ledger, _ := newFileLedger(t)
	ctx := context.Background()
	rec := validRecord()

	done := make(chan error, 10)
	for range 10 {
		go func() {
			done <- ledger.Insert(ctx, rec)
		}()
	}
	for range 10 {
		require.NoError(t, <-done)
	}

	assert.Len(t, ledger.Records(), 1)
}

func TestFileStoreAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.json")
	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, []BetRecord{validRecord()}))
	require.NoError(t, store.Save(ctx, []BetRecord{validRecord(), recordWithToken("777")}))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ledger.json", entries[0].Name())

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestSideMarshalRoundTrip(t *testing.T) {
	rec := validRecord()
	rec.Side = types.SideDown

	store, err := NewFileStore(filepath.Join(t.TempDir(), "l.json"), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, []BetRecord{rec}))
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, types.SideDown, loaded[0].Side)
}
