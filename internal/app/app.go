// Package app wires the trading bot together: discovery feeds sessions,
// sessions trade through the exchange client, resolved sessions leave
// bet records behind, and the redemption engine sweeps them on-chain.
package app

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/budget"
	"github.com/mselser95/polymarket-updown/internal/discovery"
	"github.com/mselser95/polymarket-updown/internal/exchange"
	"github.com/mselser95/polymarket-updown/internal/pricefeed"
	"github.com/mselser95/polymarket-updown/internal/redeem"
	"github.com/mselser95/polymarket-updown/internal/rpcpool"
	"github.com/mselser95/polymarket-updown/internal/session"
	"github.com/mselser95/polymarket-updown/pkg/cache"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/mselser95/polymarket-updown/pkg/healthprobe"
	"github.com/mselser95/polymarket-updown/pkg/httpserver"
	"github.com/mselser95/polymarket-updown/pkg/wallet"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	marketCache cache.Cache
	pool        *rpcpool.Pool
	feed        *pricefeed.Feed
	exchange    exchange.Client
	discovery   *discovery.Service
	ledger      *redeem.Ledger
	engine      *redeem.Engine
	registry    *session.Registry
	machine     *session.Machine
	guard       *budget.Guard
	tracker     *wallet.Tracker

	tickInFlight atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}
