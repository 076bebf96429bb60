package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/mselser95/polymarket-updown/internal/redeem"
	"github.com/mselser95/polymarket-updown/pkg/types"
)

// StaticPrices is a scripted price source.
type StaticPrices struct {
	mu     sync.Mutex
	prices map[string]float64
}

// NewStaticPrices creates a price source with initial per-asset prices.
func NewStaticPrices(prices map[string]float64) *StaticPrices {
	cp := make(map[string]float64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &StaticPrices{prices: cp}
}

// Price returns the scripted price, or 0 for unknown assets.
func (p *StaticPrices) Price(asset string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prices[asset]
}

// Set changes an asset's price.
func (p *StaticPrices) Set(asset string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[asset] = price
}

// PlacedOrder records one PlaceOrder call.
type PlacedOrder struct {
	MarketID string
	Side     types.Side
	Amount   float64
}

// MockExchange is a scripted exchange client. Zero value is usable: odds
// default to 0.60/0.40 and every order fills at the chosen side's odds.
type MockExchange struct {
	mu sync.Mutex

	Odds             types.Odds
	OddsErr          error
	OrderErr         error
	ConditionIDValue string

	InitializeCalls int
	OddsCalls       int
	Orders          []PlacedOrder
}

// Initialize records the call.
func (m *MockExchange) Initialize(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitializeCalls++
	return nil
}

// GetOdds returns the scripted odds.
func (m *MockExchange) GetOdds(context.Context, *types.Market) (types.Odds, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OddsCalls++
	if m.OddsErr != nil {
		return types.Odds{}, m.OddsErr
	}
	if m.Odds == (types.Odds{}) {
		return types.Odds{Up: 0.60, Down: 0.40}, nil
	}
	return m.Odds, nil
}

// PlaceOrder records the order and simulates a fill at the side's odds.
func (m *MockExchange) PlaceOrder(_ context.Context, market *types.Market, side types.Side, amountUSD float64) (*types.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.OrderErr != nil {
		return nil, m.OrderErr
	}

	m.Orders = append(m.Orders, PlacedOrder{MarketID: market.ID, Side: side, Amount: amountUSD})

	odds := m.Odds
	if odds == (types.Odds{}) {
		odds = types.Odds{Up: 0.60, Down: 0.40}
	}
	price := odds.For(side)

	return &types.OrderResult{
		Success:      true,
		OrderID:      fmt.Sprintf("mock-%d", len(m.Orders)),
		FilledShares: amountUSD / price,
		FillPrice:    price,
	}, nil
}

// ConditionID returns the scripted condition ID.
func (m *MockExchange) ConditionID(context.Context, string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConditionIDValue == "" {
		return TestConditionID, nil
	}
	return m.ConditionIDValue, nil
}

// OrderCount returns how many orders were placed.
func (m *MockExchange) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders)
}

// MemoryStore is an in-memory redeem.Store.
type MemoryStore struct {
	mu      sync.Mutex
	records []redeem.BetRecord
	Saves   int
}

// Load returns the stored record set.
func (s *MemoryStore) Load(context.Context) ([]redeem.BetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]redeem.BetRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Save replaces the stored record set.
func (s *MemoryStore) Save(_ context.Context, records []redeem.BetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]redeem.BetRecord, len(records))
	copy(s.records, records)
	s.Saves++
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
