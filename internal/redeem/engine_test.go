package redeem

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeChain scripts per-token balances and per-condition resolution state.
type fakeChain struct {
	mu           sync.Mutex
	balances     map[string]*big.Int
	denominators map[string]*big.Int
	balanceErr   error
	payoutErr    error
	redeemErr    error
	redeemCalls  []string
	balanceGate  chan struct{} // when set, BalanceOf blocks until closed
}

func (f *fakeChain) BalanceOf(_ context.Context, tokenID string) (*big.Int, error) {
	if f.balanceGate != nil {
		<-f.balanceGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if bal, ok := f.balances[tokenID]; ok {
		return bal, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) PayoutDenominator(_ context.Context, conditionID string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payoutErr != nil {
		return nil, f.payoutErr
	}
	if denom, ok := f.denominators[conditionID]; ok {
		return denom, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) Redeem(_ context.Context, conditionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.redeemErr != nil {
		return "", f.redeemErr
	}
	f.redeemCalls = append(f.redeemCalls, conditionID)
	return "0xtxhash", nil
}

func newTestEngine(t *testing.T, chain ChainClient, dryRun bool) (*Engine, *Ledger) {
	t.Helper()
	ledger, _ := newFileLedger(t)
	engine, err := NewEngine(&EngineConfig{
		Ledger: ledger,
		Chain:  chain,
		DryRun: dryRun,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return engine, ledger
}

func TestSweepNoTokensClosesRecord(t *testing.T) {
	chain := &fakeChain{}
	engine, ledger := newTestEngine(t, chain, false)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, validRecord()))
	require.NoError(t, engine.Sweep(ctx))

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].Redeemed)
	assert.Equal(t, "no tokens", records[0].Note)
	assert.Equal(t, 1, records[0].AttemptCount)
	assert.Empty(t, chain.redeemCalls, "zero balance must not trigger a redemption write")
}

func TestSweepUnresolvedStaysPending(t *testing.T) {
	rec := validRecord()
	chain := &fakeChain{
		balances: map[string]*big.Int{rec.TokenID: big.NewInt(5_000_000)},
	}
	engine, ledger := newTestEngine(t, chain, false)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, rec))
	require.NoError(t, engine.Sweep(ctx))

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.False(t, records[0].Redeemed)
	assert.Equal(t, 1, records[0].AttemptCount)
	assert.Empty(t, records[0].LastError, "an unresolved market is not an error")
	assert.Empty(t, chain.redeemCalls)
}

func TestSweepRedeemsResolvedPosition(t *testing.T) {
	rec := validRecord()
	chain := &fakeChain{
		balances:     map[string]*big.Int{rec.TokenID: big.NewInt(12_500_000)},
		denominators: map[string]*big.Int{rec.ConditionID: big.NewInt(1)},
	}
	engine, ledger := newTestEngine(t, chain, false)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, rec))
	require.NoError(t, engine.Sweep(ctx))

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].Redeemed)
	assert.InDelta(t, 12.5, records[0].RedeemedAmount, 1e-9)
	assert.Contains(t, records[0].Note, "0xtxhash")
	require.Len(t, chain.redeemCalls, 1)
	assert.Equal(t, rec.ConditionID, chain.redeemCalls[0])
}

func TestSweepDryRunNeverRedeems(t *testing.T) {
	rec := validRecord()
	chain := &fakeChain{
		balances:     map[string]*big.Int{rec.TokenID: big.NewInt(5_000_000)},
		denominators: map[string]*big.Int{rec.ConditionID: big.NewInt(1)},
	}
	engine, ledger := newTestEngine(t, chain, true)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, rec))
	require.NoError(t, engine.Sweep(ctx))

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.False(t, records[0].Redeemed)
	assert.Equal(t, 1, records[0].AttemptCount)
	assert.Empty(t, chain.redeemCalls)
}

func TestSweepDryRunNeverClosesZeroBalanceRecords(t *testing.T) {
	// Zero balance closes a record in live mode, but a preview must leave
	// every pending claim intact: redeemed=true is a one-way transition.
	chain := &fakeChain{}
	engine, ledger := newTestEngine(t, chain, true)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, validRecord()))
	require.NoError(t, engine.Sweep(ctx))

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.False(t, records[0].Redeemed)
	assert.Empty(t, records[0].Note)
	assert.Equal(t, 1, records[0].AttemptCount)
	assert.Equal(t, 1, ledger.PendingCount())
}

func TestSweepRedeemedIsTerminal(t *testing.T) {
	rec := validRecord()
	now := time.Now()
	rec.markRedeemed(now, 10, "redeemed in tx 0xold")

	// Even a scripted balance cannot resurrect a redeemed record.
	chain := &fakeChain{
		balances:     map[string]*big.Int{rec.TokenID: big.NewInt(5_000_000)},
		denominators: map[string]*big.Int{rec.ConditionID: big.NewInt(1)},
	}
	engine, ledger := newTestEngine(t, chain, false)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, rec))
	for range 3 {
		require.NoError(t, engine.Sweep(ctx))
	}

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].Redeemed)
	assert.Equal(t, "redeemed in tx 0xold", records[0].Note)
	assert.Equal(t, 0, records[0].AttemptCount, "redeemed records are never touched")
	assert.Empty(t, chain.redeemCalls)
}

func TestSweepIsolatesPerRecordFailures(t *testing.T) {
	good := validRecord()
	bad := recordWithToken("999")

	chain := &fakeChain{
		balances: map[string]*big.Int{
			good.TokenID: big.NewInt(0),
			bad.TokenID:  big.NewInt(5_000_000),
		},
		denominators: map[string]*big.Int{bad.ConditionID: big.NewInt(1)},
		redeemErr:    errors.New("execution reverted"),
	}
	engine, ledger := newTestEngine(t, chain, false)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, good))
	require.NoError(t, ledger.Insert(ctx, bad))
	require.NoError(t, engine.Sweep(ctx), "a failing record must not abort the sweep")

	var goodDone, badPending bool
	for _, rec := range ledger.Records() {
		switch rec.TokenID {
		case good.TokenID:
			goodDone = rec.Redeemed
		case bad.TokenID:
			badPending = !rec.Redeemed && rec.LastError != ""
		}
	}
	assert.True(t, goodDone, "healthy record advanced despite sibling failure")
	assert.True(t, badPending, "failed record keeps its error in attempt metadata")
}

func TestSweepAttemptMetadataOnError(t *testing.T) {
	chain := &fakeChain{balanceErr: errors.New("connection refused")}
	engine, ledger := newTestEngine(t, chain, false)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, validRecord()))
	require.NoError(t, engine.Sweep(ctx))
	require.NoError(t, engine.Sweep(ctx))

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.False(t, records[0].Redeemed)
	assert.Equal(t, 2, records[0].AttemptCount)
	require.NotNil(t, records[0].LastAttemptAt)
	assert.Contains(t, records[0].LastError, "connection refused")
}

func TestSweepRefusesConcurrentRuns(t *testing.T) {
	gate := make(chan struct{})
	rec := validRecord()
	chain := &fakeChain{
		balances:    map[string]*big.Int{rec.TokenID: big.NewInt(1)},
		balanceGate: gate,
	}
	engine, ledger := newTestEngine(t, chain, false)
	ctx := context.Background()
	require.NoError(t, ledger.Insert(ctx, rec))

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- engine.Sweep(ctx)
	}()

	// Wait until the first sweep is inside the chain call.
	require.Eventually(t, func() bool {
		return engine.inFlight.Load()
	}, time.Second, time.Millisecond)

	err := engine.Sweep(ctx)
	require.ErrorIs(t, err, ErrSweepInProgress)

	close(gate)
	require.NoError(t, <-firstDone)

	// With the first sweep finished, sweeping works again.
	require.NoError(t, engine.Sweep(ctx))
}
