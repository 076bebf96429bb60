package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Assets)
	assert.Equal(t, "dry-run", cfg.ExecutionMode)
	assert.True(t, cfg.DryRun())
	assert.Equal(t, 15*time.Second, cfg.TickInterval)
	assert.InDelta(t, 0.53, cfg.GateMinProbability, 1e-9)
	assert.Equal(t, "file", cfg.LedgerMode)
	assert.NotEmpty(t, cfg.RPCEndpoints)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("ASSETS", "BTC, SOL ,")
	t.Setenv("SESSION_BUDGET", "125.5")
	t.Setenv("TICK_INTERVAL", "5s")
	t.Setenv("EXECUTION_MODE", "live")
	t.Setenv("POLYMARKET_PRIVATE_KEY", "0xabc123")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "SOL"}, cfg.Assets)
	assert.InDelta(t, 125.5, cfg.SessionBudget, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.TickInterval)
	assert.False(t, cfg.DryRun())
}

func TestLoadFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SESSION_BUDGET", "not-a-number")
	t.Setenv("TICK_INTERVAL", "soon")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.InDelta(t, 50.0, cfg.SessionBudget, 1e-9)
	assert.Equal(t, 15*time.Second, cfg.TickInterval)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			HTTPPort:           "8080",
			Assets:             []string{"BTC"},
			SessionBudget:      50,
			GateMinProbability: 0.53,
			ExecutionMode:      "dry-run",
			RPCEndpoints:       []string{"https://polygon-rpc.com"},
			LedgerMode:         "file",
			LedgerPath:         "data/bets.json",
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "empty-port", mutate: func(c *Config) { c.HTTPPort = "" }, wantErr: "HTTP_PORT"},
		{name: "no-assets", mutate: func(c *Config) { c.Assets = nil }, wantErr: "ASSETS"},
		{name: "zero-budget", mutate: func(c *Config) { c.SessionBudget = 0 }, wantErr: "SESSION_BUDGET"},
		{name: "gate-probability-too-low", mutate: func(c *Config) { c.GateMinProbability = 0.5 }, wantErr: "GATE_MIN_PROBABILITY"},
		{name: "bad-execution-mode", mutate: func(c *Config) { c.ExecutionMode = "paper" }, wantErr: "EXECUTION_MODE"},
		{name: "no-rpc-endpoints", mutate: func(c *Config) { c.RPCEndpoints = nil }, wantErr: "RPC endpoint"},
		{name: "bad-ledger-mode", mutate: func(c *Config) { c.LedgerMode = "sqlite" }, wantErr: "LEDGER_MODE"},
		{name: "file-mode-without-path", mutate: func(c *Config) { c.LedgerPath = "" }, wantErr: "LEDGER_PATH"},
		{name: "live-without-key", mutate: func(c *Config) { c.ExecutionMode = "live" }, wantErr: "POLYMARKET_PRIVATE_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
