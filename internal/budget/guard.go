package budget

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/wallet"
)

// BalanceFetcher is the wallet surface the guard needs. Both
// wallet.Client and test mocks implement it.
type BalanceFetcher interface {
	GetBalances(ctx context.Context, address common.Address) (*wallet.Balances, error)
}

// Guard monitors the wallet's USDC balance and gates new session entry.
// The disable threshold tracks recent stake sizes with hysteresis, and a
// one-way profit lock withholds part of the bankroll once the balance
// clears a configured multiple of the initial bankroll.
type Guard struct {
	enabled atomic.Bool // lock-free reads on the admission path

	checkInterval   time.Duration
	wallet          BalanceFetcher
	address         common.Address
	logger          *zap.Logger
	initialBankroll float64
	minBalance      float64
	stakeMultiplier float64
	hysteresisRatio float64
	lockTrigger     float64 // multiple of initial bankroll that arms the lock
	lockAmount      float64 // multiple of initial bankroll withheld once armed

	mu               sync.RWMutex
	lastBalance      float64
	lastCheck        time.Time
	recentStakes     []float64
	lockedProfit     float64 // one-way: set once, never cleared
	disableThreshold float64
	enableThreshold  float64
}

// Config holds guard configuration.
type Config struct {
	CheckInterval   time.Duration
	InitialBankroll float64
	MinBalance      float64
	StakeMultiplier float64 // defaults to 2.0
	HysteresisRatio float64 // defaults to 1.2
	LockTrigger     float64 // 0 disables the profit lock
	LockAmount      float64
	Wallet          BalanceFetcher
	Address         common.Address
	Logger          *zap.Logger
}

// Status is a point-in-time view of the guard for the HTTP surface.
type Status struct {
	Enabled          bool      `json:"enabled"`
	LastBalance      float64   `json:"lastBalance"`
	LastCheck        time.Time `json:"lastCheck"`
	DisableThreshold float64   `json:"disableThreshold"`
	EnableThreshold  float64   `json:"enableThreshold"`
	LockedProfit     float64   `json:"lockedProfit"`
	AvgStakeSize     float64   `json:"avgStakeSize"`
	RecentStakeCount int       `json:"recentStakeCount"`
}

// New creates a guard with the given configuration.
func New(cfg *Config) (*Guard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Wallet == nil {
		return nil, fmt.Errorf("wallet cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}
	if cfg.InitialBankroll <= 0 {
		return nil, fmt.Errorf("initial bankroll must be positive")
	}
	if cfg.MinBalance <= 0 {
		return nil, fmt.Errorf("min balance must be positive")
	}
	if cfg.LockTrigger < 0 || cfg.LockAmount < 0 {
		return nil, fmt.Errorf("profit lock parameters cannot be negative")
	}
	if cfg.LockTrigger > 0 && cfg.LockAmount >= cfg.LockTrigger {
		return nil, fmt.Errorf("lock amount %.2f must be below lock trigger %.2f", cfg.LockAmount, cfg.LockTrigger)
	}

	stakeMultiplier := cfg.StakeMultiplier
	if stakeMultiplier <= 0 {
		stakeMultiplier = 2.0
	}
	hysteresisRatio := cfg.HysteresisRatio
	if hysteresisRatio < 1.0 {
		hysteresisRatio = 1.2
	}

	g := &Guard{
		checkInterval:    cfg.CheckInterval,
		wallet:           cfg.Wallet,
		address:          cfg.Address,
		logger:           cfg.Logger,
		initialBankroll:  cfg.InitialBankroll,
		minBalance:       cfg.MinBalance,
		stakeMultiplier:  stakeMultiplier,
		hysteresisRatio:  hysteresisRatio,
		lockTrigger:      cfg.LockTrigger,
		lockAmount:       cfg.LockAmount,
		recentStakes:     make([]float64, 0, 20),
		disableThreshold: cfg.MinBalance,
		enableThreshold:  cfg.MinBalance * hysteresisRatio,
	}

	// Start enabled; the first balance check corrects the state.
	g.enabled.Store(true)

	GuardEnabled.Set(1)
	GuardDisableThreshold.Set(g.disableThreshold)
	GuardEnableThreshold.Set(g.enableThreshold)
	GuardLockedProfit.Set(0)

	return g, nil
}

// IsEnabled reports whether new sessions may be opened. Lock-free, safe
// from hot paths.
func (g *Guard) IsEnabled() bool {
	return g.enabled.Load()
}

// RecordStake adds a stake to the rolling window and recalculates the
// thresholds. Call after each successful order.
func (g *Guard) RecordStake(stake float64) {
	if stake <= 0 {
		g.logger.Warn("invalid-stake-size", zap.Float64("stake", stake))
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.recentStakes = append(g.recentStakes, stake)
	if len(g.recentStakes) > 20 {
		g.recentStakes = g.recentStakes[1:]
	}

	g.recalcThresholds()
}

// recalcThresholds recomputes both thresholds. Caller holds g.mu.
func (g *Guard) recalcThresholds() {
	avg := 0.0
	if len(g.recentStakes) > 0 {
		sum := 0.0
		for _, s := range g.recentStakes {
			sum += s
		}
		avg = sum / float64(len(g.recentStakes))
	}

	g.disableThreshold = math.Max(avg*g.stakeMultiplier, g.minBalance) + g.lockedProfit
	g.enableThreshold = g.disableThreshold * g.hysteresisRatio

	GuardAvgStakeSize.Set(avg)
	GuardDisableThreshold.Set(g.disableThreshold)
	GuardEnableThreshold.Set(g.enableThreshold)
}

// CheckBalance fetches the current balance, arms the profit lock when
// the trigger is reached, and flips the enabled state across thresholds.
func (g *Guard) CheckBalance(ctx context.Context) error {
	start := time.Now()
	defer func() {
		GuardCheckDuration.Observe(time.Since(start).Seconds())
	}()

	balances, err := g.wallet.GetBalances(ctx, g.address)
	if err != nil {
		g.logger.Error("balance-check-failed",
			zap.Error(err),
			zap.String("address", g.address.Hex()))
		return fmt.Errorf("get balances: %w", err)
	}

	balance := balances.USDCValue()

	g.mu.Lock()
	g.lastBalance = balance
	g.lastCheck = time.Now()

	// One-way profit lock: once balance clears the trigger, withhold the
	// configured slice of the bankroll from all future thresholds.
	if g.lockTrigger > 0 && g.lockedProfit == 0 && balance >= g.lockTrigger*g.initialBankroll {
		g.lockedProfit = g.lockAmount * g.initialBankroll
		GuardLockedProfit.Set(g.lockedProfit)
		g.logger.Info("profit-lock-armed",
			zap.Float64("balance", balance),
			zap.Float64("locked", g.lockedProfit))
	}

	g.recalcThresholds()
	disableThreshold := g.disableThreshold
	enableThreshold := g.enableThreshold
	g.mu.Unlock()

	GuardBalance.Set(balance)

	currentlyEnabled := g.enabled.Load()

	switch {
	case currentlyEnabled && balance < disableThreshold:
		g.enabled.Store(false)
		GuardEnabled.Set(0)
		GuardStateChanges.Inc()
		g.logger.Warn("budget-guard-disabled",
			zap.Float64("balance", balance),
			zap.Float64("disable_threshold", disableThreshold),
			zap.Float64("enable_threshold", enableThreshold))
	case !currentlyEnabled && balance >= enableThreshold:
		g.enabled.Store(true)
		GuardEnabled.Set(1)
		GuardStateChanges.Inc()
		g.logger.Info("budget-guard-enabled",
			zap.Float64("balance", balance),
			zap.Float64("disable_threshold", disableThreshold),
			zap.Float64("enable_threshold", enableThreshold))
	default:
		g.logger.Debug("balance-checked",
			zap.Float64("balance", balance),
			zap.Bool("enabled", currentlyEnabled),
			zap.Float64("disable_threshold", disableThreshold))
	}

	return nil
}

// Start runs the initial balance check and launches the background
// monitoring loop. The loop stops when ctx is cancelled.
func (g *Guard) Start(ctx context.Context) {
	g.logger.Info("budget-guard-started",
		zap.Duration("check_interval", g.checkInterval),
		zap.Float64("initial_bankroll", g.initialBankroll),
		zap.Float64("min_balance", g.minBalance),
		zap.Float64("lock_trigger", g.lockTrigger),
		zap.Float64("lock_amount", g.lockAmount))

	err := g.CheckBalance(ctx)
	if err != nil {
		g.logger.Error("initial-balance-check-failed", zap.Error(err))
	}

	go g.monitorLoop(ctx)
}

func (g *Guard) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(g.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("budget-guard-stopped")
			return
		case <-ticker.C:
			err := g.CheckBalance(ctx)
			if err != nil {
				g.logger.Error("balance-check-error", zap.Error(err))
			}
		}
	}
}

// GetStatus returns the current guard state for the HTTP surface.
func (g *Guard) GetStatus() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()

	avg := 0.0
	if len(g.recentStakes) > 0 {
		sum := 0.0
		for _, s := range g.recentStakes {
			sum += s
		}
		avg = sum / float64(len(g.recentStakes))
	}

	return Status{
		Enabled:          g.enabled.Load(),
		LastBalance:      g.lastBalance,
		LastCheck:        g.lastCheck,
		DisableThreshold: g.disableThreshold,
		EnableThreshold:  g.enableThreshold,
		LockedProfit:     g.lockedProfit,
		AvgStakeSize:     avg,
		RecentStakeCount: len(g.recentStakes),
	}
}
