package types

import (
	"fmt"
	"time"
)

// Side is the directional position taken in an up/down market.
type Side int

const (
	SideUnset Side = iota
	SideUp
	SideDown
)

// String returns the lowercase side name.
func (s Side) String() string {
	switch s {
	case SideUp:
		return "up"
	case SideDown:
		return "down"
	default:
		return "unset"
	}
}

// Market describes one tradeable up/down window. It is created once at
// discovery and never mutated.
type Market struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Asset       string    `json:"asset"`     // e.g. "BTC"
	Timeframe   int       `json:"timeframe"` // window duration in minutes
	UpTokenID   string    `json:"upTokenId"`
	DownTokenID string    `json:"downTokenId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

// Duration returns the market window length.
func (m *Market) Duration() time.Duration {
	return time.Duration(m.Timeframe) * time.Minute
}

// TokenFor returns the outcome token ID for the given side.
func (m *Market) TokenFor(side Side) string {
	if side == SideDown {
		return m.DownTokenID
	}
	return m.UpTokenID
}

// Validate checks that the market carries everything a session needs.
func (m *Market) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("market ID cannot be empty")
	}
	if m.Timeframe <= 0 {
		return fmt.Errorf("market %s: timeframe must be positive, got %d", m.ID, m.Timeframe)
	}
	if m.UpTokenID == "" || m.DownTokenID == "" {
		return fmt.Errorf("market %s: missing outcome token IDs", m.ID)
	}
	if !m.EndTime.After(m.StartTime) {
		return fmt.Errorf("market %s: end time not after start time", m.ID)
	}
	return nil
}

// DiscoveredMarket is a Market candidate produced by the discovery feed,
// carrying the last observed outcome prices at discovery time.
type DiscoveredMarket struct {
	Market
	UpPrice   float64 `json:"upPrice"`
	DownPrice float64 `json:"downPrice"`
}

// Odds holds the current market-making probabilities per outcome token.
type Odds struct {
	Up   float64 `json:"up"`
	Down float64 `json:"down"`
}

// For returns the probability of the given side.
func (o Odds) For(side Side) float64 {
	if side == SideDown {
		return o.Down
	}
	return o.Up
}

// OrderResult is the outcome of a single order submission.
type OrderResult struct {
	Success      bool    `json:"success"`
	OrderID      string  `json:"orderId,omitempty"`
	FilledShares float64 `json:"filledShares,omitempty"`
	FillPrice    float64 `json:"fillPrice,omitempty"`
	ErrorMsg     string  `json:"error,omitempty"`
}
