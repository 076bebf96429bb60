package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/budget"
	"github.com/mselser95/polymarket-updown/internal/discovery"
	"github.com/mselser95/polymarket-updown/internal/exchange"
	"github.com/mselser95/polymarket-updown/internal/gate"
	"github.com/mselser95/polymarket-updown/internal/pricefeed"
	"github.com/mselser95/polymarket-updown/internal/redeem"
	"github.com/mselser95/polymarket-updown/internal/rpcpool"
	"github.com/mselser95/polymarket-updown/internal/session"
	"github.com/mselser95/polymarket-updown/pkg/cache"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/mselser95/polymarket-updown/pkg/healthprobe"
	"github.com/mselser95/polymarket-updown/pkg/httpserver"
	"github.com/mselser95/polymarket-updown/pkg/wallet"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	marketCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	pool, err := rpcpool.NewPool(&rpcpool.Config{
		Endpoints:        cfg.RPCEndpoints,
		PremiumEndpoints: cfg.PremiumRPCEndpoints,
		CallTimeout:      cfg.RPCCallTimeout,
		Logger:           logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup rpc pool: %w", err)
	}

	feed, err := pricefeed.New(&pricefeed.Config{
		Assets:        cfg.Assets,
		StreamURL:     cfg.PriceStreamURL,
		RESTURL:       cfg.PriceRESTURL,
		PollInterval:  cfg.PricePollInterval,
		MaxReconnects: cfg.PriceMaxReconnects,
		HistoryWindow: cfg.PriceHistoryWindow,
		MinPlausible:  cfg.PriceMinPlausible,
		MaxPlausible:  cfg.PriceMaxPlausible,
		BufferSize:    cfg.PriceStreamBufferLen,
		Logger:        logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup price feed: %w", err)
	}

	exchangeClient, err := exchange.New(&exchange.Config{
		CLOBURL:      cfg.PolymarketCLOBURL,
		GammaURL:     cfg.PolymarketGammaURL,
		APIKey:       cfg.PolymarketAPIKey,
		Secret:       cfg.PolymarketSecret,
		Passphrase:   cfg.PolymarketPassphrase,
		PrivateKey:   cfg.PrivateKey,
		ProxyAddress: cfg.WalletAddress,
		DryRun:       cfg.DryRun(),
		Logger:       logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup exchange client: %w", err)
	}

	discoveryService, err := discovery.New(&discovery.Config{
		Client:       discovery.NewClient(cfg.PolymarketGammaURL, logger),
		Cache:        marketCache,
		PollInterval: cfg.ScanInterval,
		MarketLimit:  cfg.DiscoveryLimit,
		Assets:       cfg.Assets,
		Logger:       logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup discovery: %w", err)
	}

	ledger, err := setupLedger(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup ledger: %w", err)
	}

	engine, err := setupEngine(cfg, logger, pool, ledger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup redemption engine: %w", err)
	}

	registry := session.NewRegistry(logger)

	params := gate.DefaultParams()
	params.MinProbability = cfg.GateMinProbability
	params.FixedCostPerTx = cfg.GateFixedCostPerTx
	params.SpreadPct = cfg.GateSpreadPct

	machine, err := session.NewMachine(&session.MachineConfig{
		Prices:              feed,
		Exchange:            exchangeClient,
		GateParams:          params,
		Recorder:            ledger,
		Warmup:              cfg.WarmupDuration,
		MinMovementStrength: cfg.MinMovementStrength,
		MinSideProbability:  cfg.MinSideProbability,
		Logger:              logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup session machine: %w", err)
	}

	guard, tracker, err := setupWalletMonitoring(cfg, logger, pool)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup wallet monitoring: %w", err)
	}

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Registry:      registry,
		Ledger:        ledger,
		Guard:         guard,
		Pool:          pool,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		marketCache:   marketCache,
		pool:          pool,
		feed:          feed,
		exchange:      exchangeClient,
		discovery:     discoveryService,
		ledger:        ledger,
		engine:        engine,
		registry:      registry,
		machine:       machine,
		guard:         guard,
		tracker:       tracker,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redeem.Ledger, error) {
	var (
		store redeem.Store
		err   error
	)

	if cfg.LedgerMode == "postgres" {
		store, err = redeem.NewPostgresStore(&redeem.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	} else {
		store, err = redeem.NewFileStore(cfg.LedgerPath, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.LedgerMode, err)
	}

	return redeem.NewLedger(ctx, store, logger)
}

// setupEngine builds the redemption engine. Without a private key or a
// wallet address there is nothing on-chain to sweep, so paper trading runs
// without an engine rather than reading balances of the zero address.
func setupEngine(cfg *config.Config, logger *zap.Logger, pool *rpcpool.Pool, ledger *redeem.Ledger) (*redeem.Engine, error) {
	if cfg.PrivateKey == "" && cfg.WalletAddress == "" {
		logger.Info("redemption-engine-disabled",
			zap.String("reason", "no wallet address or private key configured"))
		return nil, nil
	}

	chain, err := redeem.NewCTFClient(&redeem.CTFConfig{
		Pool:       pool,
		PrivateKey: cfg.PrivateKey,
		Address:    cfg.WalletAddress,
		DryRun:     cfg.DryRun(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create CTF client: %w", err)
	}

	return redeem.NewEngine(&redeem.EngineConfig{
		Ledger: ledger,
		Chain:  chain,
		DryRun: cfg.DryRun(),
		Logger: logger,
	})
}

// setupWalletMonitoring builds the budget guard and balance tracker when
// a wallet address can be resolved. Without one the bot trades unguarded,
// which is the normal dry-run configuration.
func setupWalletMonitoring(cfg *config.Config, logger *zap.Logger, pool *rpcpool.Pool) (*budget.Guard, *wallet.Tracker, error) {
	address, ok := resolveAddress(cfg)
	if !ok {
		logger.Info("budget-guard-disabled",
			zap.String("reason", "no wallet address or private key configured"))
		return nil, nil, nil
	}

	walletClient, err := wallet.NewClient(pool, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create wallet client: %w", err)
	}

	guard, err := budget.New(&budget.Config{
		CheckInterval:   cfg.GuardCheckInterval,
		InitialBankroll: cfg.InitialBankroll,
		MinBalance:      cfg.GuardMinBalance,
		LockTrigger:     cfg.ProfitLockTrigger,
		LockAmount:      cfg.ProfitLockAmount,
		Wallet:          walletClient,
		Address:         address,
		Logger:          logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create budget guard: %w", err)
	}

	tracker, err := wallet.NewTracker(&wallet.TrackerConfig{
		Client:       walletClient,
		Address:      address,
		PollInterval: cfg.GuardCheckInterval,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create wallet tracker: %w", err)
	}

	return guard, tracker, nil
}

// resolveAddress returns the trading wallet address, either configured
// directly or derived from the private key.
func resolveAddress(cfg *config.Config) (common.Address, bool) {
	if cfg.WalletAddress != "" {
		return common.HexToAddress(cfg.WalletAddress), true
	}

	if cfg.PrivateKey == "" {
		return common.Address{}, false
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return common.Address{}, false
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, false
	}

	return crypto.PubkeyToAddress(*publicKey), true
}
