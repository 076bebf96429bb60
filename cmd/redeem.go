package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/redeem"
	"github.com/mselser95/polymarket-updown/internal/rpcpool"
	"github.com/mselser95/polymarket-updown/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Redeem settled winning bets for USDC",
	Long: `Sweeps the bet ledger for unredeemed winning bets in settled markets
and claims them by calling the CTF contract's redeemPositions function.
Winning outcome tokens convert to USDC at a 1:1 ratio.

Requires:
- POLYMARKET_PRIVATE_KEY in .env (WALLET_ADDRESS is enough with --dry-run)
- MATIC balance for gas (~$0.01 per market)

Example:
  # Preview what a sweep would redeem
  polymarket-updown redeem --dry-run

  # Run one sweep
  polymarket-updown redeem

  # Sweep continuously
  polymarket-updown redeem --auto --interval 30m`,
	RunE: runRedeem,
}

var (
	redeemDryRun   bool
	redeemAutoMode bool
	redeemInterval time.Duration
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(redeemCmd)
	redeemCmd.Flags().BoolVar(&redeemDryRun, "dry-run", false,
		"Show redeemable bets without sending transactions")
	redeemCmd.Flags().BoolVar(&redeemAutoMode, "auto", false,
		"Run continuously, sweeping the ledger periodically")
	redeemCmd.Flags().DurationVar(&redeemInterval, "interval", 1*time.Hour,
		"Sweep interval in auto mode (minimum 1m)")
}

func runRedeem(cmd *cobra.Command, args []string) error {
	if redeemAutoMode && redeemInterval < time.Minute {
		return fmt.Errorf("interval %s too short, minimum is 1m", redeemInterval)
	}

	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, ledger, err := buildRedemption(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = ledger.Close()
	}()

	fmt.Printf("=== Bet Redemption ===\n\n")
	fmt.Printf("Ledger: %s\n", cfg.LedgerMode)
	fmt.Printf("Pending bets: %d\n", ledger.PendingCount())
	fmt.Printf("Mode: %s\n\n", map[bool]string{true: "DRY RUN", false: "LIVE"}[redeemDryRun])

	if !redeemAutoMode {
		if err := engine.Sweep(ctx); err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		fmt.Printf("Sweep complete, %d bets still pending\n", ledger.PendingCount())
		return nil
	}

	logger.Info("redeemer-starting-auto-mode",
		zap.Duration("interval", redeemInterval),
		zap.Bool("dry-run", redeemDryRun))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(redeemInterval)
	defer ticker.Stop()

	if err := engine.Sweep(ctx); err != nil {
		logger.Error("sweep-failed", zap.Error(err))
	}

	for {
		select {
		case sig := <-sigCh:
			logger.Info("redeemer-stopping", zap.String("signal", sig.String()))
			return nil
		case <-ticker.C:
			if err := engine.Sweep(ctx); err != nil {
				logger.Error("sweep-failed", zap.Error(err))
				continue
			}
			logger.Info("sweep-complete", zap.Int("pending-bets", ledger.PendingCount()))
		}
	}
}

// buildRedemption wires a standalone sweep pipeline: store, ledger, RPC
// pool, CTF client, engine. The --dry-run flag overrides the configured
// execution mode.
func buildRedemption(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redeem.Engine, *redeem.Ledger, error) {
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
		return nil, nil, fmt.Errorf("create %s store: %w", cfg.LedgerMode, err)
	}

	ledger, err := redeem.NewLedger(ctx, store, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create ledger: %w", err)
	}

	pool, err := rpcpool.NewPool(&rpcpool.Config{
		Endpoints:        cfg.RPCEndpoints,
		PremiumEndpoints: cfg.PremiumRPCEndpoints,
		CallTimeout:      cfg.RPCCallTimeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create rpc pool: %w", err)
	}

	dryRun := redeemDryRun || cfg.DryRun()

	chain, err := redeem.NewCTFClient(&redeem.CTFConfig{
		Pool:       pool,
		PrivateKey: cfg.PrivateKey,
		Address:    cfg.WalletAddress,
		DryRun:     dryRun,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create CTF client: %w", err)
	}

	engine, err := redeem.NewEngine(&redeem.EngineConfig{
		Ledger: ledger,
		Chain:  chain,
		DryRun: dryRun,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create engine: %w", err)
	}

	return engine, ledger, nil
}
