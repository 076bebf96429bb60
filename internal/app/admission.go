package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/session"
	"github.com/mselser95/polymarket-updown/pkg/types"
)

// handleNewMarkets consumes discovered market windows and admits them as
// trading sessions. The channel closes when discovery shuts down.
func (a *App) handleNewMarkets() {
	defer a.wg.Done()

	for market := range a.discovery.Markets() {
		a.admitMarket(market, time.Now())
	}
}

// admitMarket opens a session for a discovered window unless something
// disqualifies it: too little time left, already tracked, budget guard
// tripped, or no usable open price.
func (a *App) admitMarket(market types.DiscoveredMarket, now time.Time) bool {
	remaining := market.EndTime.Sub(now)
	if remaining < a.cfg.MinRemaining {
		a.logger.Debug("market-rejected-too-little-time",
			zap.String("market-id", market.ID),
			zap.Duration("remaining", remaining))
		return false
	}

	if a.registry.Has(market.ID) {
		return false
	}

	if a.guard != nil && !a.guard.IsEnabled() {
		a.logger.Warn("market-rejected-budget-guard",
			zap.String("market-id", market.ID))
		return false
	}

	openPrice := a.feed.Price(market.Asset)
	if openPrice <= 0 {
		a.logger.Warn("market-rejected-no-open-price",
			zap.String("market-id", market.ID),
			zap.String("asset", market.Asset))
		return false
	}

	s, err := session.NewSession(market.Market, openPrice, a.cfg.SessionBudget, now)
	if err != nil {
		a.logger.Error("session-creation-failed",
			zap.String("market-id", market.ID),
			zap.Error(err))
		return false
	}

	if !a.registry.Insert(s) {
		return false
	}

	a.logger.Info("session-admitted",
		zap.String("market-id", market.ID),
		zap.String("asset", market.Asset),
		zap.Int("timeframe-minutes", market.Timeframe),
		zap.Float64("open-price", openPrice),
		zap.Float64("budget", a.cfg.SessionBudget),
		zap.Duration("remaining", remaining))

	return true
}
