package pricefeed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newBTCTracker() *Tracker {
	return NewTracker("BTC", 30*time.Minute, 0.01, 10_000_000)
}

func TestTrackerSanityFilter(t *testing.T) {
	tracker := newBTCTracker()
	now := time.Now()

	assert.True(t, tracker.Update(100_000, now))
	assert.False(t, tracker.Update(0, now), "zero price rejected")
	assert.False(t, tracker.Update(-5, now), "negative price rejected")
	assert.False(t, tracker.Update(20_000_000, now), "implausibly large price rejected")

	assert.InDelta(t, 100_000, tracker.Price(), 1e-9, "rejected ticks do not overwrite the price")
	assert.Equal(t, 1, tracker.HistoryLen())
}

func TestTrackerChangeAgainstOpen(t *testing.T) {
	tracker := newBTCTracker()
	now := time.Now()

	tracker.Update(100, now)
	tracker.SetOpen(100)
	tracker.Update(105, now.Add(time.Minute))

	abs, pct := tracker.Change()
	assert.InDelta(t, 5.0, abs, 1e-9)
	assert.InDelta(t, 5.0, pct, 1e-9)
}

func TestTrackerChangeWithoutOpenIsZero(t *testing.T) {
	tracker := newBTCTracker()
	tracker.Update(100, time.Now())

	abs, pct := tracker.Change()
	assert.Zero(t, abs)
	assert.Zero(t, pct)
}

func TestTrackerMovementStrengthSaturates(t *testing.T) {
	tracker := newBTCTracker()
	now := time.Now()

	tracker.Update(100, now)
	tracker.SetOpen(100)

	// 0.25% move -> strength 0.5.
	tracker.Update(100.25, now.Add(time.Minute))
	assert.InDelta(t, 0.5, tracker.MovementStrength(), 1e-9)

	// 1% move -> saturates at 1.0.
	tracker.Update(101, now.Add(2*time.Minute))
	assert.InDelta(t, 1.0, tracker.MovementStrength(), 1e-9)

	// Downward moves count the same.
	tracker.Update(99, now.Add(3*time.Minute))
	assert.InDelta(t, 1.0, tracker.MovementStrength(), 1e-9)
}

func TestTrackerHistoryPruning(t *testing.T) {
	tracker := NewTracker("BTC", 10*time.Minute, 0.01, 10_000_000)
	start := time.Now().Add(-time.Hour)

	for i := 0; i < 60; i++ {
		tracker.Update(100+float64(i), start.Add(time.Duration(i)*time.Minute))
	}

	// Only ticks within the 10-minute window of the newest tick survive.
	assert.LessOrEqual(t, tracker.HistoryLen(), 11)
	assert.Greater(t, tracker.HistoryLen(), 0)
}

func TestTrackerChangeOver(t *testing.T) {
	tracker := newBTCTracker()
	now := time.Now()

	tracker.Update(100, now.Add(-10*time.Minute))
	tracker.Update(102, now.Add(-5*time.Minute))
	tracker.Update(104, now)

	abs, pct := tracker.ChangeOver(6 * time.Minute)
	assert.InDelta(t, 2.0, abs, 1e-9, "reference is the oldest tick inside the lookback")
	assert.InDelta(t, 2.0/102*100, pct, 1e-9)

	abs, _ = tracker.ChangeOver(20 * time.Minute)
	assert.InDelta(t, 4.0, abs, 1e-9)
}

func TestAssetSymbolMapping(t *testing.T) {
	assert.Equal(t, "BTCUSDT", SymbolForAsset("BTC"))
	assert.Equal(t, "BTC", AssetForSymbol("BTCUSDT"))
	assert.Equal(t, "ETH", AssetForSymbol("ethusdt"))
	assert.Equal(t, "", AssetForSymbol("BTCEUR"))
}

func TestStreamDecode(t *testing.T) {
	stream, err := NewStream(&StreamConfig{
		URL:    "wss://example.test/stream",
		Assets: []string{"BTC"},
		Logger: zapNop(),
	})
	assert.NoError(t, err)

	raw := []byte(`{"stream":"btcusdt@trade","data":{"e":"trade","E":1735689600000,"s":"BTCUSDT","p":"99123.45"}}`)
	update, ok := stream.decode(raw)
	assert.True(t, ok)
	assert.Equal(t, "BTC", update.Asset)
	assert.InDelta(t, 99123.45, update.Price, 1e-9)
	assert.Equal(t, time.UnixMilli(1735689600000), update.At)

	_, ok = stream.decode([]byte(`{"stream":"x","data":{"e":"depth"}}`))
	assert.False(t, ok, "non-trade events ignored")

	_, ok = stream.decode([]byte(`not json`))
	assert.False(t, ok)
}

func TestStreamNames(t *testing.T) {
	stream, err := NewStream(&StreamConfig{
		URL:    "wss://example.test/stream",
		Assets: []string{"BTC", "ETH"},
		Logger: zapNop(),
	})
	assert.NoError(t, err)
	assert.Equal(t, "btcusdt@trade/ethusdt@trade", stream.streamNames())
}
