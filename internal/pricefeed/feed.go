package pricefeed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Feed maintains one Tracker per asset, fed primarily by the streaming
// source with a permanent polling fallback.
type Feed struct {
	trackers     map[string]*Tracker
	stream       *Stream
	rest         *RESTClient
	pollInterval time.Duration
	logger       *zap.Logger
}

// Config holds feed configuration.
type Config struct {
	Assets        []string
	StreamURL     string
	RESTURL       string
	PollInterval  time.Duration
	MaxReconnects int
	HistoryWindow time.Duration
	MinPlausible  float64
	MaxPlausible  float64
	BufferSize    int
	Logger        *zap.Logger
}

// New creates a feed for the configured assets.
func New(cfg *Config) (*Feed, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(cfg.Assets) == 0 {
		return nil, fmt.Errorf("at least one asset is required")
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	stream, err := NewStream(&StreamConfig{
		URL:           cfg.StreamURL,
		Assets:        cfg.Assets,
		MaxReconnects: cfg.MaxReconnects,
		BufferSize:    cfg.BufferSize,
		Logger:        cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	trackers := make(map[string]*Tracker, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		trackers[asset] = NewTracker(asset, cfg.HistoryWindow, cfg.MinPlausible, cfg.MaxPlausible)
	}

	return &Feed{
		trackers:     trackers,
		stream:       stream,
		rest:         NewRESTClient(cfg.RESTURL),
		pollInterval: pollInterval,
		logger:       cfg.Logger,
	}, nil
}

// Run pumps the stream into the trackers; if the stream gives up permanently
// it switches to periodic REST polling for the rest of the process lifetime.
// Blocks until the context is cancelled.
func (f *Feed) Run(ctx context.Context) {
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- f.stream.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("price-feed-stopping")
			return
		case update, ok := <-f.stream.Updates():
			if !ok {
				// Stream closed: either shutdown or permanent failure.
				err := <-streamErr
				if ctx.Err() != nil {
					return
				}
				f.logger.Warn("price-feed-falling-back-to-polling", zap.Error(err))
				FallbackActive.Set(1)
				f.pollLoop(ctx)
				return
			}
			f.apply(update)
		}
	}
}

// apply routes one tick to its tracker.
func (f *Feed) apply(update PriceUpdate) {
	tracker, ok := f.trackers[update.Asset]
	if !ok {
		return
	}

	accepted := tracker.Update(update.Price, update.At)
	if !accepted {
		f.logger.Warn("price-tick-rejected",
			zap.String("asset", update.Asset),
			zap.Float64("price", update.Price))
	}
}

// pollLoop periodically fetches last prices over REST. This is permanent:
// once the stream has given up there is no attempt to resubscribe.
func (f *Feed) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	f.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("price-feed-stopping")
			return
		case <-ticker.C:
			f.poll(ctx)
		}
	}
}

func (f *Feed) poll(ctx context.Context) {
	for asset, tracker := range f.trackers {
		price, err := f.rest.LastPrice(ctx, asset)
		if err != nil {
			PollErrorsTotal.Inc()
			f.logger.Warn("price-poll-failed",
				zap.String("asset", asset),
				zap.Error(err))
			continue
		}
		tracker.Update(price, time.Now())
	}
}

// Tracker returns the tracker for an asset, or nil if the asset is unknown.
func (f *Feed) Tracker(asset string) *Tracker {
	return f.trackers[asset]
}

// Price returns the current price for an asset, or 0 if unknown.
func (f *Feed) Price(asset string) float64 {
	tracker, ok := f.trackers[asset]
	if !ok {
		return 0
	}
	return tracker.Price()
}

// Healthy reports whether every tracker has seen a tick within maxAge.
func (f *Feed) Healthy(maxAge time.Duration) bool {
	cutoff := time.Now().Add(-maxAge)
	for _, tracker := range f.trackers {
		if tracker.LastTick().Before(cutoff) {
			return false
		}
	}
	return true
}
