package pricefeed

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PriceUpdate is one decoded tick from the streaming source.
type PriceUpdate struct {
	Asset string
	Price float64
	At    time.Time
}

// Stream maintains a trade-stream subscription for a set of assets and
// pushes decoded updates onto a channel. On disconnect it reconnects with
// exponential backoff; after MaxReconnects consecutive failures it gives up
// permanently and closes the updates channel, signalling the feed to fall
// back to polling.
type Stream struct {
	url           string
	assets        []string
	dialTimeout   time.Duration
	maxReconnects int
	initialDelay  time.Duration
	maxDelay      time.Duration
	updates       chan PriceUpdate
	logger        *zap.Logger
}

// StreamConfig holds stream configuration.
type StreamConfig struct {
	URL           string // combined-streams base, e.g. wss://stream.binance.com:9443/stream
	Assets        []string
	DialTimeout   time.Duration
	MaxReconnects int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BufferSize    int
	Logger        *zap.Logger
}

// NewStream creates a stream client for the given assets.
func NewStream(cfg *StreamConfig) (*Stream, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(cfg.Assets) == 0 {
		return nil, fmt.Errorf("at least one asset is required")
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	maxReconnects := cfg.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 10
	}
	initialDelay := cfg.InitialDelay
	if initialDelay <= 0 {
		initialDelay = 1 * time.Second
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	return &Stream{
		url:           cfg.URL,
		assets:        cfg.Assets,
		dialTimeout:   dialTimeout,
		maxReconnects: maxReconnects,
		initialDelay:  initialDelay,
		maxDelay:      maxDelay,
		updates:       make(chan PriceUpdate, bufferSize),
		logger:        cfg.Logger,
	}, nil
}

// Updates returns the decoded tick channel. It is closed when the stream
// gives up permanently or the context is cancelled.
func (s *Stream) Updates() <-chan PriceUpdate {
	return s.updates
}

// Run connects and pumps ticks until the context is cancelled or the
// reconnect budget is exhausted. Returns nil on context cancellation and an
// error when falling back to polling is required.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.updates)

	consecutiveFailures := 0
	delay := s.initialDelay

	for {
		if ctx.Err() != nil {
			return nil
		}

		delivered, err := s.runSession(ctx)
		if ctx.Err() != nil {
			return nil
		}

		// A session that delivered ticks was a healthy connection; its loss
		// starts a fresh failure streak instead of extending the old one.
		if delivered {
			consecutiveFailures = 0
			delay = s.initialDelay
		}

		consecutiveFailures++
		StreamDisconnectsTotal.Inc()
		s.logger.Warn("price-stream-disconnected",
			zap.Error(err),
			zap.Int("consecutive-failures", consecutiveFailures),
			zap.Int("max-reconnects", s.maxReconnects))

		if consecutiveFailures >= s.maxReconnects {
			return fmt.Errorf("price stream gave up after %d reconnect attempts: %w", consecutiveFailures, err)
		}

		// Jittered exponential backoff before the next attempt.
		jittered := time.Duration(float64(delay) * (1.0 + 0.2*rand.Float64()))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(jittered):
		}

		delay *= 2
		if delay > s.maxDelay {
			delay = s.maxDelay
		}
	}
}

// runSession dials, subscribes, and pumps ticks until the connection drops.
// Reports whether the session delivered at least one decoded tick.
func (s *Stream) runSession(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: s.dialTimeout}

	url := s.url + "?streams=" + s.streamNames()
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	StreamConnected.Set(1)
	defer StreamConnected.Set(0)
	s.logger.Info("price-stream-connected", zap.Strings("assets", s.assets))

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	delivered := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return delivered, fmt.Errorf("read: %w", err)
		}

		update, ok := s.decode(raw)
		if !ok {
			continue
		}
		delivered = true

		select {
		case s.updates <- update:
		default:
			// Consumer is behind; dropping a tick is preferable to stalling
			// the read loop and triggering a disconnect.
			StreamDropsTotal.Inc()
		}
	}
}

// combinedMessage is the combined-streams envelope.
type combinedMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		EventType string `json:"e"`
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		Price     string `json:"p"`
	} `json:"data"`
}

// decode parses one raw frame into a PriceUpdate.
func (s *Stream) decode(raw []byte) (PriceUpdate, bool) {
	var msg combinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Debug("price-stream-decode-failed", zap.Error(err))
		return PriceUpdate{}, false
	}

	if msg.Data.EventType != "trade" || msg.Data.Price == "" {
		return PriceUpdate{}, false
	}

	price, err := strconv.ParseFloat(msg.Data.Price, 64)
	if err != nil {
		return PriceUpdate{}, false
	}

	asset := AssetForSymbol(msg.Data.Symbol)
	if asset == "" {
		return PriceUpdate{}, false
	}

	at := time.UnixMilli(msg.Data.EventTime)
	if msg.Data.EventTime == 0 {
		at = time.Now()
	}

	return PriceUpdate{Asset: asset, Price: price, At: at}, true
}

// streamNames builds the combined-streams path segment, e.g.
// "btcusdt@trade/ethusdt@trade".
func (s *Stream) streamNames() string {
	names := make([]string, 0, len(s.assets))
	for _, asset := range s.assets {
		names = append(names, strings.ToLower(SymbolForAsset(asset))+"@trade")
	}
	return strings.Join(names, "/")
}

// SymbolForAsset maps an asset identifier to its USDT ticker symbol.
func SymbolForAsset(asset string) string {
	return strings.ToUpper(asset) + "USDT"
}

// AssetForSymbol maps a ticker symbol back to the asset identifier, or ""
// when the symbol is not a USDT pair.
func AssetForSymbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if !strings.HasSuffix(symbol, "USDT") {
		return ""
	}
	return strings.TrimSuffix(symbol, "USDT")
}
