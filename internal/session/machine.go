package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/exchange"
	"github.com/mselser95/polymarket-updown/internal/gate"
	"github.com/mselser95/polymarket-updown/internal/pricefeed"
	"github.com/mselser95/polymarket-updown/internal/redeem"
	"github.com/mselser95/polymarket-updown/pkg/types"
)

// PriceSource provides the latest observed price per asset. Zero means no
// price has been observed yet.
type PriceSource interface {
	Price(asset string) float64
}

// SentimentProvider is an optional external signal. Sentiment never blocks
// entry; when it disagrees with the price signal, the machine logs a
// caution and follows the price.
type SentimentProvider interface {
	Signal(ctx context.Context, asset string) (types.Side, bool)
}

// Recorder receives the single BetRecord a resolved, invested session emits.
type Recorder interface {
	Insert(ctx context.Context, record redeem.BetRecord) error
}

// Machine advances sessions on each tick. It holds no per-session state of
// its own, so one machine serves every session.
type Machine struct {
	prices     PriceSource
	exchange   exchange.Client
	gateParams gate.Params
	sentiment  SentimentProvider
	recorder   Recorder
	logger     *zap.Logger

	warmup      time.Duration
	minStrength float64
	minSideProb float64
}

// MachineConfig holds machine configuration. Sentiment is optional; every
// other collaborator is required.
type MachineConfig struct {
	Prices              PriceSource
	Exchange            exchange.Client
	GateParams          gate.Params
	Sentiment           SentimentProvider
	Recorder            Recorder
	Warmup              time.Duration
	MinMovementStrength float64
	MinSideProbability  float64
	Logger              *zap.Logger
}

// NewMachine creates a session machine.
func NewMachine(cfg *MachineConfig) (*Machine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Prices == nil {
		return nil, fmt.Errorf("price source cannot be nil")
	}
	if cfg.Exchange == nil {
		return nil, fmt.Errorf("exchange client cannot be nil")
	}
	if cfg.Recorder == nil {
		return nil, fmt.Errorf("recorder cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := cfg.GateParams.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gate params: %w", err)
	}

	warmup := cfg.Warmup
	if warmup == 0 {
		warmup = time.Minute
	}

	return &Machine{
		prices:      cfg.Prices,
		exchange:    cfg.Exchange,
		gateParams:  cfg.GateParams,
		sentiment:   cfg.Sentiment,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
		warmup:      warmup,
		minStrength: cfg.MinMovementStrength,
		minSideProb: cfg.MinSideProbability,
	}, nil
}

// Tick advances one session and reports whether it resolved. The caller
// owns the session for the duration of the call; sessions are never ticked
// concurrently.
func (m *Machine) Tick(ctx context.Context, s *Session) bool {
	now := time.Now()

	if s.Resolved() {
		return true
	}

	if s.Elapsed(now) >= s.Market.Duration() {
		return m.resolve(ctx, s)
	}

	if s.Side == types.SideUnset {
		m.maybeLockSide(ctx, s, now)
	}

	if s.Side != types.SideUnset {
		m.executeDueBets(ctx, s, now)
	}

	return false
}

// maybeLockSide computes the directional signal once the warm-up has
// passed. The side, once locked, is immutable for the session.
func (m *Machine) maybeLockSide(ctx context.Context, s *Session, now time.Time) {
	if s.Elapsed(now) < m.warmup {
		return
	}

	price := m.prices.Price(s.Market.Asset)
	if price == 0 {
		return
	}

	pct := (price - s.OpenPrice) / s.OpenPrice * 100
	strength := pricefeed.Strength(pct)
	if strength < m.minStrength {
		return
	}

	side := types.SideUp
	if pct < 0 {
		side = types.SideDown
	}

	if m.sentiment != nil {
		if hint, ok := m.sentiment.Signal(ctx, s.Market.Asset); ok && hint != side {
			// Price signal is authoritative; sentiment only cautions.
			m.logger.Warn("sentiment-disagrees-with-price-signal",
				zap.String("market", s.Market.ID),
				zap.String("price_side", side.String()),
				zap.String("sentiment_side", hint.String()))
		}
	}

	s.Side = side
	s.LockedAt = now
	SidesLockedTotal.WithLabelValues(side.String()).Inc()

	m.logger.Info("side-locked",
		zap.String("market", s.Market.ID),
		zap.String("side", side.String()),
		zap.Float64("open_price", s.OpenPrice),
		zap.Float64("price", price),
		zap.Float64("change_pct", pct),
		zap.Float64("strength", strength))
}

// estimateProbability maps the movement strength of the current price move
// into a win-probability estimate: a flat market is a coin flip, a move at
// the saturation threshold estimates 0.95.
func estimateProbability(strength float64) float64 {
	return 0.5 + 0.45*strength
}

// executeDueBets works through every staged bet whose scheduled minute has
// elapsed. Each bet executes at most once: a gate rejection or a hard order
// failure marks it executed without a fill, never to be retried.
func (m *Machine) executeDueBets(ctx context.Context, s *Session, now time.Time) {
	elapsedMinutes := s.Elapsed(now).Minutes()

	for i := range s.StagedBets {
		bet := &s.StagedBets[i]
		if bet.Executed || elapsedMinutes < bet.ScheduledMinute {
			continue
		}

		price := m.prices.Price(s.Market.Asset)
		if price == 0 {
			// No feed yet; leave the bet pending for the next tick.
			return
		}

		odds, err := m.exchange.GetOdds(ctx, &s.Market)
		if err != nil {
			// Transient: leave the bet pending for the next tick.
			m.logger.Warn("odds-fetch-failed",
				zap.String("market", s.Market.ID),
				zap.Error(err))
			return
		}

		marketProb := odds.For(s.Side)
		if marketProb < m.minSideProb {
			bet.Executed = true
			BetsExecutedTotal.WithLabelValues("skipped").Inc()
			BetSkipsTotal.WithLabelValues("side-probability-below-minimum").Inc()
			m.logger.Info("bet-skipped",
				zap.String("market", s.Market.ID),
				zap.String("reason", "side-probability-below-minimum"),
				zap.Float64("market_probability", marketProb))
			continue
		}

		pct := (price - s.OpenPrice) / s.OpenPrice * 100
		if (s.Side == types.SideUp) != (pct > 0) {
			// The move that locked the side has reversed; stand aside for
			// this slot rather than buy against the tape.
			bet.Executed = true
			BetsExecutedTotal.WithLabelValues("skipped").Inc()
			BetSkipsTotal.WithLabelValues("signal-reversed").Inc()
			m.logger.Info("bet-skipped",
				zap.String("market", s.Market.ID),
				zap.String("reason", "signal-reversed"),
				zap.Float64("change_pct", pct))
			continue
		}

		probability := estimateProbability(pricefeed.Strength(pct))
		decision := gate.Evaluate(m.gateParams, probability, marketProb, bet.Amount)
		if !decision.Enter {
			bet.Executed = true
			BetsExecutedTotal.WithLabelValues("skipped").Inc()
			BetSkipsTotal.WithLabelValues(decision.Reason).Inc()
			m.logger.Info("bet-skipped",
				zap.String("market", s.Market.ID),
				zap.String("reason", decision.Reason),
				zap.Float64("probability", probability),
				zap.Float64("market_probability", marketProb),
				zap.Float64("budget", bet.Amount))
			continue
		}

		stake := decision.SuggestedStake
		if stake > bet.Amount {
			stake = bet.Amount
		}

		result, err := m.exchange.PlaceOrder(ctx, &s.Market, s.Side, stake)
		if err != nil {
			// Hard failure: mark executed so a single slot never retries
			// forever. Other scheduled bets still attempt independently.
			bet.Executed = true
			bet.Timestamp = now
			BetsExecutedTotal.WithLabelValues("failed").Inc()
			m.logger.Error("order-failed",
				zap.String("market", s.Market.ID),
				zap.String("side", s.Side.String()),
				zap.Float64("stake", stake),
				zap.Error(err))
			continue
		}

		bet.Executed = true
		bet.OrderID = result.OrderID
		bet.FilledShares = result.FilledShares
		bet.FillPrice = result.FillPrice
		bet.Timestamp = now
		s.TotalInvested += stake
		s.TotalShares += result.FilledShares
		BetsExecutedTotal.WithLabelValues("filled").Inc()

		m.logger.Info("bet-filled",
			zap.String("market", s.Market.ID),
			zap.String("side", s.Side.String()),
			zap.String("order_id", result.OrderID),
			zap.Float64("stake", stake),
			zap.Float64("shares", result.FilledShares),
			zap.Float64("fill_price", result.FillPrice))
	}
}

// resolve settles the session against the realized price direction and, for
// an invested session, emits its BetRecord for redemption. Reports whether
// the session actually resolved.
func (m *Machine) resolve(ctx context.Context, s *Session) bool {
	if s.Side == types.SideUnset {
		// Never entered: a no-op market.
		s.Result = ResultLoss
		s.Payout = 0
		s.Profit = 0
		SessionsResolvedTotal.WithLabelValues("no-entry").Inc()
		m.logger.Info("session-resolved",
			zap.String("market", s.Market.ID),
			zap.String("result", "no-entry"))
		return true
	}

	closePrice := m.prices.Price(s.Market.Asset)
	if closePrice <= 0 {
		// No usable close price; grading against 0 would always read as a
		// Down win. Stay pending and let a later tick, or the stale
		// cleanup, settle the session.
		m.logger.Warn("resolution-deferred-no-price",
			zap.String("market", s.Market.ID),
			zap.String("asset", s.Market.Asset))
		return false
	}

	realized := types.SideDown
	if closePrice > s.OpenPrice {
		realized = types.SideUp
	}

	if realized == s.Side {
		s.Result = ResultWin
		s.Payout = s.TotalShares
	} else {
		s.Result = ResultLoss
		s.Payout = 0
	}
	s.Profit = s.Payout - s.TotalInvested

	SessionsResolvedTotal.WithLabelValues(s.Result.String()).Inc()
	ProfitTotal.Add(s.Profit)

	m.logger.Info("session-resolved",
		zap.String("market", s.Market.ID),
		zap.String("side", s.Side.String()),
		zap.String("result", s.Result.String()),
		zap.Float64("open_price", s.OpenPrice),
		zap.Float64("close_price", closePrice),
		zap.Float64("invested", s.TotalInvested),
		zap.Float64("payout", s.Payout),
		zap.Float64("profit", s.Profit))

	if s.TotalInvested > 0 {
		m.emitRecord(ctx, s)
	}
	return true
}

// emitRecord hands the position to the redemption ledger. Exactly one
// record per invested session.
func (m *Machine) emitRecord(ctx context.Context, s *Session) {
	conditionID, err := m.exchange.ConditionID(ctx, s.Market.ID)
	if err != nil {
		m.logger.Error("condition-id-lookup-failed",
			zap.String("market", s.Market.ID),
			zap.Error(err))
		return
	}

	record := redeem.BetRecord{
		ConditionID: conditionID,
		TokenID:     s.Market.TokenFor(s.Side),
		MarketLabel: s.Market.Label,
		Side:        s.Side,
		CreatedAt:   time.Now(),
	}

	if err = m.recorder.Insert(ctx, record); err != nil {
		m.logger.Error("bet-record-insert-failed",
			zap.String("market", s.Market.ID),
			zap.Error(err))
		return
	}

	m.logger.Info("bet-record-emitted",
		zap.String("market", s.Market.ID),
		zap.String("condition_id", conditionID),
		zap.String("token_id", record.TokenID))
}
