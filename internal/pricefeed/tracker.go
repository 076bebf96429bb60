package pricefeed

import (
	"math"
	"sync"
	"time"
)

// strengthSaturationPct is the absolute percent change at which
// MovementStrength saturates to 1.0.
const strengthSaturationPct = 0.5

// PricePoint is one observed price tick.
type PricePoint struct {
	Price float64
	At    time.Time
}

// Tracker maintains current price, a session open price, and a bounded
// rolling history for one asset. All methods are safe for concurrent use.
type Tracker struct {
	asset        string
	window       time.Duration
	minPlausible float64
	maxPlausible float64

	mu        sync.RWMutex
	current   float64
	open      float64
	history   []PricePoint
	lastTick  time.Time
	rejected  int64
}

// NewTracker creates a tracker for one asset. Prices outside the plausible
// range are rejected as bad ticks.
func NewTracker(asset string, window time.Duration, minPlausible, maxPlausible float64) *Tracker {
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &Tracker{
		asset:        asset,
		window:       window,
		minPlausible: minPlausible,
		maxPlausible: maxPlausible,
	}
}

// Update records a new tick. Returns false when the price fails the sanity
// filter and was discarded.
func (t *Tracker) Update(price float64, at time.Time) bool {
	if price < t.minPlausible || price > t.maxPlausible || math.IsNaN(price) || math.IsInf(price, 0) {
		t.mu.Lock()
		t.rejected++
		t.mu.Unlock()
		TicksRejectedTotal.WithLabelValues(t.asset).Inc()
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = price
	t.lastTick = at
	t.history = append(t.history, PricePoint{Price: price, At: at})
	t.prune(at)

	TicksTotal.WithLabelValues(t.asset).Inc()
	CurrentPrice.WithLabelValues(t.asset).Set(price)
	return true
}

// prune drops history older than the rolling window. Caller holds the lock.
func (t *Tracker) prune(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.history) && t.history[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.history = append(t.history[:0], t.history[i:]...)
	}
}

// Price returns the most recent accepted price, or 0 before the first tick.
func (t *Tracker) Price() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// LastTick returns when the current price was observed.
func (t *Tracker) LastTick() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastTick
}

// SetOpen fixes the session open price. It is set explicitly at session
// start, never automatically.
func (t *Tracker) SetOpen(price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = price
}

// OpenPrice returns the session open price, or 0 if never set.
func (t *Tracker) OpenPrice() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.open
}

// Change returns the absolute and percent change of the current price
// against the session open. Percent is expressed in percent units
// (0.5 means 0.5%).
func (t *Tracker) Change() (abs, pct float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.open == 0 || t.current == 0 {
		return 0, 0
	}

	abs = t.current - t.open
	pct = abs / t.open * 100
	return abs, pct
}

// ChangeOver returns absolute and percent change of the current price
// against the oldest tick within the given lookback window.
func (t *Tracker) ChangeOver(lookback time.Duration) (abs, pct float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.current == 0 || len(t.history) == 0 {
		return 0, 0
	}

	cutoff := t.lastTick.Add(-lookback)
	ref := t.history[0]
	for _, p := range t.history {
		if !p.At.Before(cutoff) {
			ref = p
			break
		}
	}

	if ref.Price == 0 {
		return 0, 0
	}

	abs = t.current - ref.Price
	pct = abs / ref.Price * 100
	return abs, pct
}

// Strength normalizes an absolute percent change into 0..1, saturating at
// 0.5%.
func Strength(pct float64) float64 {
	strength := math.Abs(pct) / strengthSaturationPct
	if strength > 1 {
		return 1
	}
	return strength
}

// MovementStrength normalizes the absolute percent change against the open
// into 0..1, saturating at 0.5%.
func (t *Tracker) MovementStrength() float64 {
	_, pct := t.Change()
	return Strength(pct)
}

// HistoryLen returns the number of retained ticks.
func (t *Tracker) HistoryLen() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.history)
}
