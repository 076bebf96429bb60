package app

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/budget"
	"github.com/mselser95/polymarket-updown/internal/gate"
	"github.com/mselser95/polymarket-updown/internal/pricefeed"
	"github.com/mselser95/polymarket-updown/internal/redeem"
	"github.com/mselser95/polymarket-updown/internal/session"
	"github.com/mselser95/polymarket-updown/internal/testutil"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/mselser95/polymarket-updown/pkg/types"
	"github.com/mselser95/polymarket-updown/pkg/wallet"
)

// newAdmissionApp builds the minimal slice of the app that the admission
// path touches: config, registry, price feed, optional guard.
func newAdmissionApp(t *testing.T) *App {
	t.Helper()

	logger := zap.NewNop()

	feed, err := pricefeed.New(&pricefeed.Config{
		Assets:       []string{"BTC", "ETH"},
		MinPlausible: 1,
		MaxPlausible: 10_000_000,
		Logger:       logger,
	})
	require.NoError(t, err)

	return &App{
		cfg: &config.Config{
			MinRemaining:  5 * time.Minute,
			SessionBudget: 50.0,
		},
		logger:   logger,
		registry: session.NewRegistry(logger),
		feed:     feed,
	}
}

func discovered(id string, opts ...testutil.MarketOption) types.DiscoveredMarket {
	return types.DiscoveredMarket{
		Market:    testutil.Market(id, opts...),
		UpPrice:   0.52,
		DownPrice: 0.48,
	}
}

func TestAdmitMarketOpensSession(t *testing.T) {
	a := newAdmissionApp(t)
	a.feed.Tracker("BTC").Update(65000, time.Now())

	admitted := a.admitMarket(discovered("mkt-1"), time.Now())

	require.True(t, admitted)
	require.True(t, a.registry.Has("mkt-1"))

	sessions := a.registry.Snapshot()
	require.Len(t, sessions, 1)
	require.InDelta(t, 65000, sessions[0].OpenPrice, 1e-9)
	require.Equal(t, types.SideUnset, sessions[0].Side)
}

func TestAdmitMarketRejectsShortWindow(t *testing.T) {
	a := newAdmissionApp(t)
	a.feed.Tracker("BTC").Update(65000, time.Now())

	// Window started 12 minutes ago, 3 minutes left against a 5 minute floor.
	m := discovered("mkt-short", testutil.WithStart(time.Now().Add(-12*time.Minute)))

	require.False(t, a.admitMarket(m, time.Now()))
	require.Equal(t, 0, a.registry.Count())
}

func TestAdmitMarketDeduplicates(t *testing.T) {
	a := newAdmissionApp(t)
	a.feed.Tracker("BTC").Update(65000, time.Now())

	require.True(t, a.admitMarket(discovered("mkt-dup"), time.Now()))
	require.False(t, a.admitMarket(discovered("mkt-dup"), time.Now()))
	require.Equal(t, 1, a.registry.Count())
}

func TestAdmitMarketRejectsWithoutPrice(t *testing.T) {
	a := newAdmissionApp(t)

	require.False(t, a.admitMarket(discovered("mkt-no-price"), time.Now()))
	require.Equal(t, 0, a.registry.Count())
}

type lowBalanceWallet struct{}

func (lowBalanceWallet) GetBalances(context.Context, common.Address) (*wallet.Balances, error) {
	return &wallet.Balances{
		MATIC:         big.NewInt(0),
		USDC:          big.NewInt(5_000_000), // 5 USDC, below any floor
		USDCAllowance: big.NewInt(0),
	}, nil
}

func TestAdmitMarketRejectsWhenGuardTripped(t *testing.T) {
	a := newAdmissionApp(t)
	a.feed.Tracker("BTC").Update(65000, time.Now())

	guard, err := budget.New(&budget.Config{
		CheckInterval:   time.Minute,
		InitialBankroll: 100,
		MinBalance:      25,
		Wallet:          lowBalanceWallet{},
		Logger:          zap.NewNop(),
	})
	require.NoError(t, err)
	require.NoError(t, guard.CheckBalance(context.Background()))
	require.False(t, guard.IsEnabled())

	a.guard = guard
	require.False(t, a.admitMarket(discovered("mkt-guarded"), time.Now()))
	require.Equal(t, 0, a.registry.Count())
}

func TestTickSessionsRecordsStakesAndRemovesResolved(t *testing.T) {
	a := newAdmissionApp(t)
	a.feed.Tracker("BTC").Update(65000, time.Now())

	require.True(t, a.admitMarket(discovered("mkt-tick"), time.Now()))

	// A resolved session leaves the registry on the next tick pass. Build
	// the machine against scripted collaborators so Tick has everything
	// it needs.
	ledger, err := redeem.NewLedger(context.Background(), &testutil.MemoryStore{}, zap.NewNop())
	require.NoError(t, err)
	defer ledger.Close()

	machine, err := session.NewMachine(&session.MachineConfig{
		Prices:     testutil.NewStaticPrices(map[string]float64{"BTC": 65000}),
		Exchange:   &testutil.MockExchange{},
		GateParams: gate.DefaultParams(),
		Recorder:   ledger,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	a.machine = machine
	a.ctx = context.Background()

	s := a.registry.Snapshot()[0]
	s.Result = session.ResultWin

	a.tickSessions()

	require.Equal(t, 0, a.registry.Count())
}
