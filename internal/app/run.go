package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/redeem"
)

// Run starts all application components and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("app-starting",
		zap.Strings("assets", a.cfg.Assets),
		zap.String("execution-mode", a.cfg.ExecutionMode),
		zap.Duration("tick-interval", a.cfg.TickInterval))

	initCtx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
	defer cancel()
	if err := a.exchange.Initialize(initCtx); err != nil {
		return fmt.Errorf("initialize exchange client: %w", err)
	}

	a.startComponents()

	a.healthChecker.SetReady(true)
	a.logger.Info("app-started")

	a.waitForShutdown()

	return a.Shutdown()
}

func (a *App) startComponents() {
	a.wg.Add(1)
	go a.runHTTPServer()

	a.wg.Add(1)
	go a.runPriceFeed()

	a.wg.Add(1)
	go a.runDiscovery()

	a.wg.Add(1)
	go a.handleNewMarkets()

	a.wg.Add(1)
	go a.runTickLoop()

	if a.engine != nil {
		a.wg.Add(1)
		go a.runSweepLoop()
	}

	a.wg.Add(1)
	go a.runCleanupLoop()

	if a.guard != nil {
		a.guard.Start(a.ctx)
	}

	if a.tracker != nil {
		a.wg.Add(1)
		go a.runWalletTracker()
	}
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()

	if err := a.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("http-server-failed", zap.Error(err))
	}
}

func (a *App) runPriceFeed() {
	defer a.wg.Done()
	a.feed.Run(a.ctx)
}

func (a *App) runDiscovery() {
	defer a.wg.Done()

	if err := a.discovery.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("discovery-failed", zap.Error(err))
	}
}

func (a *App) runWalletTracker() {
	defer a.wg.Done()

	if err := a.tracker.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("wallet-tracker-failed", zap.Error(err))
	}
}

// runTickLoop advances every active session at a fixed cadence. A tick
// that overruns the interval is skipped rather than stacked.
func (a *App) runTickLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			if !a.tickInFlight.CompareAndSwap(false, true) {
				a.logger.Debug("tick-skipped-previous-still-running")
				continue
			}
			a.tickSessions()
			a.tickInFlight.Store(false)
		}
	}
}

func (a *App) tickSessions() {
	for _, s := range a.registry.Snapshot() {
		before := s.TotalInvested

		resolved := a.machine.Tick(a.ctx, s)

		if a.guard != nil {
			if staked := s.TotalInvested - before; staked > 0 {
				a.guard.RecordStake(staked)
			}
		}

		if resolved {
			a.registry.Remove(s.Market.ID)
		}
	}
}

func (a *App) runSweepLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.sweep()
		}
	}
}

func (a *App) sweep() {
	err := a.engine.Sweep(a.ctx)
	switch {
	case err == nil:
	case errors.Is(err, redeem.ErrSweepInProgress):
		a.logger.Debug("sweep-skipped-previous-still-running")
	case errors.Is(err, context.Canceled):
	default:
		a.logger.Error("sweep-failed", zap.Error(err))
	}
}

// runCleanupLoop evicts sessions whose market ended long ago but never
// resolved, usually because the tick loop lost its price feed.
func (a *App) runCleanupLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			if removed := a.registry.Cleanup(time.Now(), a.cfg.StaleThreshold); removed > 0 {
				a.logger.Warn("stale-sessions-evicted", zap.Int("count", removed))
			}
		}
	}
}

func (a *App) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}
}
