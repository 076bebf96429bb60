// Package testutil provides shared fixtures and scripted collaborators for
// package tests.
package testutil

import (
	"time"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// TestConditionID is a well-formed 32-byte hex condition ID.
const TestConditionID = "0x" + "00000000000000000000000000000000000000000000000000000000000000ab"

// MarketOption mutates a fixture market.
type MarketOption func(*types.Market)

// WithTimeframe sets the window length in minutes.
func WithTimeframe(minutes int) MarketOption {
	return func(m *types.Market) {
		m.Timeframe = minutes
		m.EndTime = m.StartTime.Add(time.Duration(minutes) * time.Minute)
	}
}

// WithStart sets the window start, keeping the duration.
func WithStart(start time.Time) MarketOption {
	return func(m *types.Market) {
		duration := m.EndTime.Sub(m.StartTime)
		m.StartTime = start
		m.EndTime = start.Add(duration)
	}
}

// Market builds a 15-minute BTC up/down market starting now. Outcome token
// IDs are decimal, derived from the market ID, so they survive ledger
// validation.
func Market(id string, opts ...MarketOption) types.Market {
	now := time.Now()
	m := types.Market{
		ID:          id,
		Label:       "BTC up or down " + id,
		Asset:       "BTC",
		Timeframe:   15,
		UpTokenID:   "10" + digits(id),
		DownTokenID: "20" + digits(id),
		StartTime:   now,
		EndTime:     now.Add(15 * time.Minute),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// digits maps an arbitrary ID to a stable decimal string.
func digits(id string) string {
	out := make([]byte, 0, len(id))
	for _, c := range []byte(id) {
		if c >= '0' && c <= '9' {
			out = append(out, c)
		} else {
			out = append(out, '0'+c%10)
		}
	}
	if len(out) == 0 {
		return "0"
	}
	return string(out)
}
