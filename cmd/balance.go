package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/polymarket-updown/internal/rpcpool"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/mselser95/polymarket-updown/pkg/wallet"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check the trading wallet's balances",
	Long: `Display the trading wallet's current holdings:
- MATIC balance (for gas)
- USDC balance (for betting)
- USDC allowance (approved to the CTF Exchange)`,
	RunE: runBalance,
}

var balanceRPC string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&balanceRPC, "rpc", "r", "",
		"Polygon RPC endpoint (defaults to configured pool)")
}

func runBalance(cmd *cobra.Command, args []string) error {
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

	address, ok := resolveWalletAddress(cfg)
	if !ok {
		return fmt.Errorf("no wallet address: set WALLET_ADDRESS or POLYMARKET_PRIVATE_KEY")
	}

	endpoints := cfg.RPCEndpoints
	if balanceRPC != "" {
		endpoints = []string{balanceRPC}
	}

	pool, err := rpcpool.NewPool(&rpcpool.Config{
		Endpoints:   endpoints,
		CallTimeout: cfg.RPCCallTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create rpc pool: %w", err)
	}

	client, err := wallet.NewClient(pool, logger)
	if err != nil {
		return fmt.Errorf("create wallet client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	balances, err := client.GetBalances(ctx, address)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}

	fmt.Printf("=== Wallet Balance Sheet ===\n\n")
	fmt.Printf("Address: %s\n\n", address.Hex())
	fmt.Printf("MATIC Balance: %.6f MATIC\n", balances.MATICValue())
	fmt.Printf("USDC Balance: %.2f USDC\n", balances.USDCValue())

	// Allowances above 1e18 base units are effectively unlimited.
	if balances.USDCAllowance.Cmp(new(big.Int).SetUint64(1e18)) > 0 {
		fmt.Printf("USDC Allowance: Unlimited\n")
	} else {
		fmt.Printf("USDC Allowance: %.2f USDC\n", balances.AllowanceValue())
	}

	return nil
}

// resolveWalletAddress returns the trading wallet address, either
// configured directly or derived from the private key.
func resolveWalletAddress(cfg *config.Config) (common.Address, bool) {
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
