package redeem

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// usdcDecimals converts raw 6-decimal share units to USDC.
var usdcDecimals = big.NewFloat(1e6)

// ErrSweepInProgress is returned when a sweep is requested while the
// previous one is still running. Callers skip, never queue.
var ErrSweepInProgress = errors.New("redemption sweep already in progress")

// Engine walks the ledger and advances every unredeemed record: zero
// balance marks it redeemed ("no tokens" covers lost and already-claimed
// positions alike), unresolved markets stay pending, and resolved positions
// with balance get the on-chain redemption write. A dry-run sweep only
// previews: records never reach a terminal state from it.
type Engine struct {
	ledger   *Ledger
	chain    ChainClient
	dryRun   bool
	logger   *zap.Logger
	inFlight atomic.Bool
}

// EngineConfig holds redemption engine configuration.
type EngineConfig struct {
	Ledger *Ledger
	Chain  ChainClient
	DryRun bool
	Logger *zap.Logger
}

// NewEngine creates a redemption engine.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Chain == nil {
		return nil, fmt.Errorf("chain client cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Engine{
		ledger: cfg.Ledger,
		chain:  cfg.Chain,
		dryRun: cfg.DryRun,
		logger: cfg.Logger,
	}, nil
}

// Sweep runs one pass over every unredeemed record. Per-record failures are
// recorded on the record and isolated; they never abort the sweep. The
// ledger lock is held for the whole sweep and persisted once at the end, so
// a crash mid-sweep leaves the previously persisted state intact. Only one
// sweep may run at a time.
func (e *Engine) Sweep(ctx context.Context) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		SweepsTotal.WithLabelValues("skipped").Inc()
		return ErrSweepInProgress
	}
	defer e.inFlight.Store(false)

	start := time.Now()
	var pending, advanced int

	err := e.ledger.Update(ctx, func(records []*BetRecord) error {
		for _, rec := range records {
			if rec.Redeemed {
				continue
			}
			pending++
			if e.sweepRecord(ctx, rec) {
				advanced++
			}
		}
		return nil
	})

	SweepDurationSeconds.Observe(time.Since(start).Seconds())
	PendingRecords.Set(float64(e.ledger.PendingCount()))

	if err != nil {
		SweepsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("redemption sweep: %w", err)
	}

	SweepsTotal.WithLabelValues("completed").Inc()
	e.logger.Info("redemption-sweep-complete",
		zap.Int("pending", pending),
		zap.Int("advanced", advanced),
		zap.Duration("elapsed", time.Since(start)))

	return nil
}

// sweepRecord advances one record and reports whether it reached a terminal
// state. All outcomes, including errors, are recorded in the record's
// attempt metadata.
func (e *Engine) sweepRecord(ctx context.Context, rec *BetRecord) bool {
	now := time.Now()

	balance, err := e.chain.BalanceOf(ctx, rec.TokenID)
	if err != nil {
		rec.markAttempt(now, fmt.Errorf("read balance: %w", err))
		AttemptErrorsTotal.Inc()
		e.logger.Warn("redemption-balance-read-failed",
			zap.String("key", rec.Key()),
			zap.Error(err))
		return false
	}

	if balance.Sign() == 0 {
		if e.dryRun {
			// A preview must not close records: redeemed=true is terminal,
			// so only a live sweep may take that transition.
			rec.markAttempt(now, nil)
			e.logger.Info("dry-run-would-close-no-tokens",
				zap.String("key", rec.Key()),
				zap.String("market", rec.MarketLabel))
			return false
		}
		// Covers both "lost" and "already redeemed elsewhere"; telling
		// them apart is not needed for correctness.
		rec.markAttempt(now, nil)
		rec.markRedeemed(now, 0, "no tokens")
		RedemptionsTotal.WithLabelValues("no-tokens").Inc()
		e.logger.Info("record-closed-no-tokens",
			zap.String("key", rec.Key()),
			zap.String("market", rec.MarketLabel))
		return true
	}

	denominator, err := e.chain.PayoutDenominator(ctx, rec.ConditionID)
	if err != nil {
		rec.markAttempt(now, fmt.Errorf("read payout denominator: %w", err))
		AttemptErrorsTotal.Inc()
		e.logger.Warn("redemption-resolution-read-failed",
			zap.String("key", rec.Key()),
			zap.Error(err))
		return false
	}

	if denominator.Sign() == 0 {
		// Market not resolved on-chain yet. Not an error; try next sweep.
		rec.markAttempt(now, nil)
		e.logger.Debug("record-awaiting-resolution",
			zap.String("key", rec.Key()),
			zap.String("market", rec.MarketLabel))
		return false
	}

	amount, _ := new(big.Float).Quo(new(big.Float).SetInt(balance), usdcDecimals).Float64()

	if e.dryRun {
		rec.markAttempt(now, nil)
		e.logger.Info("dry-run-would-redeem-record",
			zap.String("key", rec.Key()),
			zap.String("market", rec.MarketLabel),
			zap.Float64("amount", amount))
		return false
	}

	txHash, err := e.chain.Redeem(ctx, rec.ConditionID)
	if err != nil {
		rec.markAttempt(now, fmt.Errorf("redeem: %w", err))
		AttemptErrorsTotal.Inc()
		e.logger.Error("redemption-write-failed",
			zap.String("key", rec.Key()),
			zap.Error(err))
		return false
	}

	rec.markAttempt(now, nil)
	rec.markRedeemed(now, amount, "redeemed in tx "+txHash)
	RedemptionsTotal.WithLabelValues("claimed").Inc()
	e.logger.Info("position-redeemed",
		zap.String("key", rec.Key()),
		zap.String("market", rec.MarketLabel),
		zap.Float64("amount", amount),
		zap.String("tx_hash", txHash))

	return true
}
