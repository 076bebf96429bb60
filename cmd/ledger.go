package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/polymarket-updown/internal/redeem"
	"github.com/mselser95/polymarket-updown/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the bet ledger",
	Long: `Prints the recorded winning bets and their redemption state.

Example:
  # Show everything
  polymarket-updown ledger

  # Show only bets still awaiting redemption
  polymarket-updown ledger --pending`,
	RunE: runLedger,
}

var ledgerPendingOnly bool

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.Flags().BoolVar(&ledgerPendingOnly, "pending", false,
		"Show only unredeemed bets")
}

func runLedger(cmd *cobra.Command, args []string) error {
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

	var store redeem.Store
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
		return fmt.Errorf("create %s store: %w", cfg.LedgerMode, err)
	}

	ledger, err := redeem.NewLedger(ctx, store, logger)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	defer func() {
		_ = ledger.Close()
	}()

	records := ledger.Records()

	fmt.Printf("=== Bet Ledger (%s) ===\n\n", cfg.LedgerMode)

	shown := 0
	for _, rec := range records {
		if ledgerPendingOnly && rec.Redeemed {
			continue
		}
		shown++

		status := "pending"
		if rec.Redeemed {
			status = fmt.Sprintf("redeemed %.2f USDC", rec.RedeemedAmount)
			if rec.RedeemedAt != nil {
				status += " at " + rec.RedeemedAt.Format("2006-01-02 15:04")
			}
		}

		fmt.Printf("%-40s %-5s %s\n", rec.MarketLabel, rec.Side, status)
		fmt.Printf("  condition: %s\n", rec.ConditionID)
		fmt.Printf("  token:     %s\n", rec.TokenID)
		if rec.AttemptCount > 0 && !rec.Redeemed {
			fmt.Printf("  attempts:  %d (last error: %s)\n", rec.AttemptCount, rec.LastError)
		}
		fmt.Println()
	}

	fmt.Printf("%d bets shown, %d pending total\n", shown, ledger.PendingCount())
	return nil
}
