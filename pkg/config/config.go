package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Assets and market admission
	Assets             []string // e.g. BTC,ETH
	MinRemaining       time.Duration
	SessionBudget      float64 // budget per market window, USDC
	StaleThreshold     time.Duration
	MinSideProbability float64

	// Loop intervals
	ScanInterval    time.Duration
	TickInterval    time.Duration
	SweepInterval   time.Duration
	CleanupInterval time.Duration
	DiscoveryLimit  int // max markets fetched per Gamma poll, 0 = all

	// Side decision
	WarmupDuration      time.Duration
	MinMovementStrength float64

	// Profitability gate
	GateMinProbability float64
	GateFixedCostPerTx float64
	GateSpreadPct      float64

	// Price feed
	PriceStreamURL       string
	PriceRESTURL         string
	PricePollInterval    time.Duration
	PriceMaxReconnects   int
	PriceHistoryWindow   time.Duration
	PriceMinPlausible    float64
	PriceMaxPlausible    float64
	PriceStreamBufferLen int

	// Polymarket API
	PolymarketCLOBURL    string
	PolymarketGammaURL   string
	PolymarketAPIKey     string
	PolymarketSecret     string
	PolymarketPassphrase string

	// Execution
	ExecutionMode string // "dry-run" or "live"
	WalletAddress string
	PrivateKey    string

	// RPC endpoints
	RPCEndpoints        []string
	PremiumRPCEndpoints []string
	RPCCallTimeout      time.Duration

	// Budget guard
	InitialBankroll    float64
	GuardCheckInterval time.Duration
	GuardMinBalance    float64
	ProfitLockTrigger  float64 // multiple of initial bankroll that arms the lock
	ProfitLockAmount   float64 // multiple of initial bankroll withheld once armed

	// Redemption ledger
	LedgerMode   string // "file" or "postgres"
	LedgerPath   string
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Assets and admission defaults
		Assets:             getListOrDefault("ASSETS", []string{"BTC", "ETH"}),
		MinRemaining:       getDurationOrDefault("MIN_REMAINING", 10*time.Minute),
		SessionBudget:      getFloat64OrDefault("SESSION_BUDGET", 50.0),
		StaleThreshold:     getDurationOrDefault("STALE_THRESHOLD", 10*time.Minute),
		MinSideProbability: getFloat64OrDefault("MIN_SIDE_PROBABILITY", 0.40),

		// Loop defaults
		ScanInterval:    getDurationOrDefault("SCAN_INTERVAL", 60*time.Second),
		TickInterval:    getDurationOrDefault("TICK_INTERVAL", 15*time.Second),
		SweepInterval:   getDurationOrDefault("SWEEP_INTERVAL", 10*time.Minute),
		CleanupInterval: getDurationOrDefault("CLEANUP_INTERVAL", 2*time.Minute),
		DiscoveryLimit:  getIntOrDefault("DISCOVERY_LIMIT", 200),

		// Side decision defaults
		WarmupDuration:      getDurationOrDefault("WARMUP_DURATION", 1*time.Minute),
		MinMovementStrength: getFloat64OrDefault("MIN_MOVEMENT_STRENGTH", 0.30),

		// Gate defaults
		GateMinProbability: getFloat64OrDefault("GATE_MIN_PROBABILITY", 0.53),
		GateFixedCostPerTx: getFloat64OrDefault("GATE_FIXED_COST_PER_TX", 0.02),
		GateSpreadPct:      getFloat64OrDefault("GATE_SPREAD_PCT", 0.02),

		// Price feed defaults
		PriceStreamURL:       getEnvOrDefault("PRICE_STREAM_URL", "wss://stream.binance.com:9443/stream"),
		PriceRESTURL:         getEnvOrDefault("PRICE_REST_URL", "https://api.binance.com/api/v3/ticker/price"),
		PricePollInterval:    getDurationOrDefault("PRICE_POLL_INTERVAL", 5*time.Second),
		PriceMaxReconnects:   getIntOrDefault("PRICE_MAX_RECONNECTS", 10),
		PriceHistoryWindow:   getDurationOrDefault("PRICE_HISTORY_WINDOW", 30*time.Minute),
		PriceMinPlausible:    getFloat64OrDefault("PRICE_MIN_PLAUSIBLE", 0.01),
		PriceMaxPlausible:    getFloat64OrDefault("PRICE_MAX_PLAUSIBLE", 10_000_000),
		PriceStreamBufferLen: getIntOrDefault("PRICE_STREAM_BUFFER_LEN", 1000),

		// Polymarket API defaults
		PolymarketCLOBURL:    getEnvOrDefault("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		PolymarketGammaURL:   getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PolymarketAPIKey:     os.Getenv("POLYMARKET_API_KEY"),
		PolymarketSecret:     os.Getenv("POLYMARKET_SECRET"),
		PolymarketPassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),

		// Execution defaults
		ExecutionMode: getEnvOrDefault("EXECUTION_MODE", "dry-run"),
		WalletAddress: os.Getenv("WALLET_ADDRESS"),
		PrivateKey:    os.Getenv("POLYMARKET_PRIVATE_KEY"),

		// RPC defaults
		RPCEndpoints: getListOrDefault("RPC_ENDPOINTS", []string{
			"https://polygon-rpc.com",
			"https://rpc.ankr.com/polygon",
			"https://polygon.llamarpc.com",
			"https://polygon-bor-rpc.publicnode.com",
		}),
		PremiumRPCEndpoints: getListOrDefault("PREMIUM_RPC_ENDPOINTS", nil),
		RPCCallTimeout:      getDurationOrDefault("RPC_CALL_TIMEOUT", 12*time.Second),

		// Budget guard defaults
		InitialBankroll:    getFloat64OrDefault("INITIAL_BANKROLL", 500.0),
		GuardCheckInterval: getDurationOrDefault("GUARD_CHECK_INTERVAL", 5*time.Minute),
		GuardMinBalance:    getFloat64OrDefault("GUARD_MIN_BALANCE", 25.0),
		ProfitLockTrigger:  getFloat64OrDefault("PROFIT_LOCK_TRIGGER", 3.0),
		ProfitLockAmount:   getFloat64OrDefault("PROFIT_LOCK_AMOUNT", 2.0),

		// Ledger defaults
		LedgerMode:   getEnvOrDefault("LEDGER_MODE", "file"),
		LedgerPath:   getEnvOrDefault("LEDGER_PATH", "data/bets.json"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "updown"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", ""),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polymarket_updown"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if len(c.Assets) == 0 {
		return fmt.Errorf("ASSETS cannot be empty")
	}

	if c.SessionBudget <= 0 {
		return fmt.Errorf("SESSION_BUDGET must be positive, got %f", c.SessionBudget)
	}

	if c.GateMinProbability <= 0.5 || c.GateMinProbability >= 1.0 {
		return fmt.Errorf("GATE_MIN_PROBABILITY must be between 0.5 and 1.0, got %f", c.GateMinProbability)
	}

	if c.ExecutionMode != "dry-run" && c.ExecutionMode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be 'dry-run' or 'live', got %q", c.ExecutionMode)
	}

	if len(c.RPCEndpoints) == 0 && len(c.PremiumRPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint must be configured")
	}

	if c.LedgerMode != "file" && c.LedgerMode != "postgres" {
		return fmt.Errorf("LEDGER_MODE must be 'file' or 'postgres', got %q", c.LedgerMode)
	}

	if c.LedgerMode == "file" && c.LedgerPath == "" {
		return fmt.Errorf("LEDGER_PATH cannot be empty in file mode")
	}

	if c.ExecutionMode == "live" && c.PrivateKey == "" {
		return fmt.Errorf("POLYMARKET_PRIVATE_KEY is required in live mode")
	}

	return nil
}

// DryRun reports whether the bot simulates order fills instead of trading.
func (c *Config) DryRun() bool {
	return c.ExecutionMode == "dry-run"
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	if len(out) == 0 {
		return defaultValue
	}

	return out
}
