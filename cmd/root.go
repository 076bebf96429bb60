package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polymarket-updown",
	Short: "Polymarket up/down trading bot",
	Long: `Automated trading bot for Polymarket's short-lived binary up/down
crypto markets. The bot discovers upcoming market windows via the Gamma
API, opens a session per window, waits for a directional price signal,
locks a side, and works through a staged bet schedule gated by an
expected-value check. Resolved winning bets are recorded in a ledger
and redeemed on-chain against the CTF contract.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
