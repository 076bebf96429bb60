// Package session implements the per-market trading lifecycle: a session
// waits for a directional signal, locks a side, works through its staged
// bets, and resolves when the market window elapses.
package session

import (
	"fmt"
	"time"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// Result is the terminal outcome of a session.
type Result int

const (
	ResultPending Result = iota
	ResultWin
	ResultLoss
)

// String returns the lowercase result name.
func (r Result) String() string {
	switch r {
	case ResultWin:
		return "win"
	case ResultLoss:
		return "loss"
	default:
		return "pending"
	}
}

// Bet is one staged order slot. Bets are materialized once at session
// creation; afterwards only the execution fields mutate, exactly once.
type Bet struct {
	ScheduledMinute float64   `json:"scheduledMinute"`
	Amount          float64   `json:"amount"`
	Executed        bool      `json:"executed"`
	OrderID         string    `json:"orderId,omitempty"`
	FilledShares    float64   `json:"filledShares,omitempty"`
	FillPrice       float64   `json:"fillPrice,omitempty"`
	Timestamp       time.Time `json:"timestamp,omitzero"`
}

// Session is the mutable unit of work for one active market. All mutation
// happens on the tick loop via the Machine; the Registry only inserts and
// removes whole sessions.
type Session struct {
	Market        types.Market `json:"market"`
	OpenPrice     float64      `json:"openPrice"`
	Side          types.Side   `json:"side"`
	LockedAt      time.Time    `json:"lockedAt,omitzero"`
	StagedBets    []Bet        `json:"stagedBets"`
	TotalInvested float64      `json:"totalInvested"`
	TotalShares   float64      `json:"totalShares"`
	Result        Result       `json:"result"`
	Payout        float64      `json:"payout"`
	Profit        float64      `json:"profit"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// NewSession admits a market and materializes its bet schedule against the
// given budget. openPrice is the asset price observed at admission; the
// resolution comparison uses it as the window's open.
func NewSession(market types.Market, openPrice, budget float64, now time.Time) (*Session, error) {
	if err := market.Validate(); err != nil {
		return nil, fmt.Errorf("invalid market: %w", err)
	}
	if openPrice <= 0 {
		return nil, fmt.Errorf("market %s: open price must be positive, got %f", market.ID, openPrice)
	}
	if budget <= 0 {
		return nil, fmt.Errorf("market %s: budget must be positive, got %f", market.ID, budget)
	}

	return &Session{
		Market:     market,
		OpenPrice:  openPrice,
		Side:       types.SideUnset,
		StagedBets: MaterializeBets(market, budget),
		Result:     ResultPending,
		CreatedAt:  now,
	}, nil
}

// Elapsed returns time since the market window opened.
func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.Market.StartTime)
}

// Resolved reports whether the session reached a terminal result.
func (s *Session) Resolved() bool {
	return s.Result != ResultPending
}

// PendingBets returns the number of unexecuted staged bets.
func (s *Session) PendingBets() int {
	var n int
	for i := range s.StagedBets {
		if !s.StagedBets[i].Executed {
			n++
		}
	}
	return n
}

// Stale reports whether the session has outlived its window by more than
// threshold without resolving.
func (s *Session) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(s.Market.StartTime) > s.Market.Duration()+threshold
}
