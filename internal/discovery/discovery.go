package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/polymarket-updown/pkg/cache"
	"github.com/mselser95/polymarket-updown/pkg/types"
	"go.uber.org/zap"
)

// Service discovers new up/down market windows by polling the Gamma API.
// Each window is emitted on the markets channel exactly once.
type Service struct {
	client       *Client
	cache        cache.Cache
	pollInterval time.Duration
	marketLimit  int
	assets       map[string]bool
	logger       *zap.Logger

	mu         sync.RWMutex
	subscribed map[string]time.Time

	marketsCh chan types.DiscoveredMarket
}

// Config holds discovery service configuration.
type Config struct {
	Client       *Client
	Cache        cache.Cache
	PollInterval time.Duration
	MarketLimit  int
	Assets       []string // symbols to track; empty tracks everything
	Logger       *zap.Logger
}

// New creates a new discovery service.
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	assets := make(map[string]bool, len(cfg.Assets))
	for _, a := range cfg.Assets {
		assets[a] = true
	}

	return &Service{
		client:       cfg.Client,
		cache:        cfg.Cache,
		pollInterval: cfg.PollInterval,
		marketLimit:  cfg.MarketLimit,
		assets:       assets,
		logger:       cfg.Logger,
		subscribed:   make(map[string]time.Time),
		marketsCh:    make(chan types.DiscoveredMarket, 100),
	}, nil
}

// Run starts the discovery polling loop and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("discovery-service-starting",
		zap.Duration("poll-interval", s.pollInterval),
		zap.Int("market-limit", s.marketLimit),
		zap.Int("assets", len(s.assets)))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Initial poll before the first tick
	err := s.Poll(ctx)
	if err != nil {
		s.logger.Error("initial-poll-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discovery-service-stopping")
			close(s.marketsCh)
			return ctx.Err()
		case <-ticker.C:
			err := s.Poll(ctx)
			if err != nil {
				s.logger.Error("poll-failed", zap.Error(err))
			}
		}
	}
}

// Poll fetches the active up/down markets once and emits the windows
// not seen before.
func (s *Service) Poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		PollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	markets, err := s.client.FetchUpDownMarkets(ctx, s.marketLimit)
	if err != nil {
		PollErrorsTotal.Inc()
		return fmt.Errorf("fetch up/down markets: %w", err)
	}

	MarketsDiscoveredTotal.Add(float64(len(markets)))

	now := time.Now()
	fresh := s.identifyNewMarkets(markets, now)

	for i := range fresh {
		s.cacheMarket(&fresh[i])

		select {
		case s.marketsCh <- fresh[i]:
			NewMarketsTotal.Inc()
			s.logger.Info("new-market-discovered",
				zap.String("market-id", fresh[i].ID),
				zap.String("asset", fresh[i].Asset),
				zap.Int("timeframe-minutes", fresh[i].Timeframe),
				zap.Time("end-time", fresh[i].EndTime))
		default:
			s.logger.Warn("markets-channel-full",
				zap.String("market-id", fresh[i].ID))
		}
	}

	s.pruneSubscribed(now)

	s.logger.Debug("poll-complete",
		zap.Int("total-markets", len(markets)),
		zap.Int("new-markets", len(fresh)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// identifyNewMarkets filters the poll result down to windows that match
// the tracked assets, have not ended, and have not been seen before.
func (s *Service) identifyNewMarkets(markets []types.DiscoveredMarket, now time.Time) []types.DiscoveredMarket {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []types.DiscoveredMarket

	for i := range markets {
		m := &markets[i]

		if len(s.assets) > 0 && !s.assets[m.Asset] {
			continue
		}
		if !m.EndTime.After(now) {
			continue
		}
		if _, seen := s.subscribed[m.ID]; seen {
			continue
		}

		s.subscribed[m.ID] = m.EndTime
		fresh = append(fresh, *m)
	}

	return fresh
}

// pruneSubscribed drops dedup entries for windows that ended over an
// hour ago, keeping the map bounded across long runs.
func (s *Service) pruneSubscribed(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, end := range s.subscribed {
		if now.Sub(end) > time.Hour {
			delete(s.subscribed, id)
		}
	}

	SubscribedMarkets.Set(float64(len(s.subscribed)))
}

// Markets returns the channel on which newly discovered windows arrive.
// The channel is closed when Run returns.
func (s *Service) Markets() <-chan types.DiscoveredMarket {
	return s.marketsCh
}

// SubscribedCount returns the number of windows currently tracked for
// deduplication.
func (s *Service) SubscribedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribed)
}

// cacheMarket stores the market metadata so HTTP handlers can serve it
// without another Gamma round trip.
func (s *Service) cacheMarket(dm *types.DiscoveredMarket) {
	if s.cache == nil {
		return
	}

	ttl := time.Until(dm.EndTime) + time.Hour
	ok := s.cache.Set(dm.ID, &dm.Market, ttl)
	if !ok {
		s.logger.Warn("failed-to-cache-market", zap.String("market-id", dm.ID))
	}
}

// GetMarket retrieves a cached market by ID, or nil if unknown.
func (s *Service) GetMarket(marketID string) *types.Market {
	if s.cache == nil {
		return nil
	}

	value, found := s.cache.Get(marketID)
	if !found {
		return nil
	}

	market, ok := value.(*types.Market)
	if !ok {
		s.logger.Warn("invalid-market-type-in-cache",
			zap.String("market-id", marketID))
		return nil
	}

	return market
}
