package redeem

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/rpcpool"
)

const (
	ctfContractAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	usdcAddress        = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	polygonChainID     = 137
	redeemGasLimit     = 200000
)

// ChainClient is the on-chain surface the sweep needs. The production
// implementation routes every call through the RPC pool; tests substitute
// a scripted fake.
type ChainClient interface {
	// BalanceOf returns the wallet's ERC1155 outcome-token balance.
	BalanceOf(ctx context.Context, tokenID string) (*big.Int, error)

	// PayoutDenominator returns the CTF payout denominator for a condition.
	// Nonzero means the market has resolved on-chain.
	PayoutDenominator(ctx context.Context, conditionID string) (*big.Int, error)

	// Redeem submits the redemption transaction for a condition and waits
	// for one confirmation. Returns the transaction hash.
	Redeem(ctx context.Context, conditionID string) (string, error)
}

const (
	balanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	payoutDenominatorABI = `[{"constant":true,"inputs":[{"name":"conditionId","type":"bytes32"}],"name":"payoutDenominator","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	redeemPositionsABI = `[{
		"inputs": [
			{"name": "collateralToken", "type": "address"},
			{"name": "parentCollectionId", "type": "bytes32"},
			{"name": "conditionId", "type": "bytes32"},
			{"name": "indexSets", "type": "uint256[]"}
		],
		"name": "redeemPositions",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}]`
)

// CTFClient talks to the Conditional Token Framework contract on Polygon
// through the RPC pool.
type CTFClient struct {
	pool       *rpcpool.Pool
	privateKey *ecdsa.PrivateKey
	address    common.Address
	dryRun     bool
	logger     *zap.Logger

	balanceABI abi.ABI
	payoutABI  abi.ABI
	redeemABI  abi.ABI
}

// CTFConfig holds CTF client configuration.
type CTFConfig struct {
	Pool *rpcpool.Pool

	// PrivateKey signs redemption transactions; required in live mode. When
	// set, the wallet address is derived from it and Address is ignored.
	PrivateKey string

	// Address is the wallet whose balances dry-run sweeps read. Without a
	// key or an address, balance reads would target the zero address and
	// report every position as empty, so neither mode accepts that.
	Address string

	DryRun bool
	Logger *zap.Logger
}

// NewCTFClient creates a CTF client. A private key is required only in live
// mode; dry-run sweeps read balances and resolution state but never submit
// the redemption transaction.
func NewCTFClient(cfg *CTFConfig) (*CTFClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Pool == nil {
		return nil, fmt.Errorf("RPC pool cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	client := &CTFClient{
		pool:   cfg.Pool,
		dryRun: cfg.DryRun,
		logger: cfg.Logger,
	}

	var err error
	if client.balanceABI, err = abi.JSON(strings.NewReader(balanceOfABI)); err != nil {
		return nil, fmt.Errorf("parse balanceOf ABI: %w", err)
	}
	if client.payoutABI, err = abi.JSON(strings.NewReader(payoutDenominatorABI)); err != nil {
		return nil, fmt.Errorf("parse payoutDenominator ABI: %w", err)
	}
	if client.redeemABI, err = abi.JSON(strings.NewReader(redeemPositionsABI)); err != nil {
		return nil, fmt.Errorf("parse redeemPositions ABI: %w", err)
	}

	switch {
	case cfg.PrivateKey != "":
		privateKey, keyErr := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if keyErr != nil {
			return nil, fmt.Errorf("parse private key: %w", keyErr)
		}
		publicKey, _ := privateKey.Public().(*ecdsa.PublicKey)
		client.privateKey = privateKey
		client.address = crypto.PubkeyToAddress(*publicKey)
	case !cfg.DryRun:
		return nil, fmt.Errorf("live mode requires a private key")
	case cfg.Address != "":
		client.address = common.HexToAddress(cfg.Address)
	}

	if client.address == (common.Address{}) {
		return nil, fmt.Errorf("wallet address required: set a private key or an address")
	}

	return client, nil
}

// Address returns the wallet address derived from the private key.
func (c *CTFClient) Address() common.Address {
	return c.address
}

// BalanceOf reads the ERC1155 balance for one outcome token.
func (c *CTFClient) BalanceOf(ctx context.Context, tokenID string) (*big.Int, error) {
	token, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return nil, fmt.Errorf("token ID %q is not a decimal integer", tokenID)
	}

	data, err := c.balanceABI.Pack("balanceOf", c.address, token)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	return rpcpool.Read(ctx, c.pool, "ctf-balance-of", func(ctx context.Context, client *ethclient.Client) (*big.Int, error) {
		contractAddr := common.HexToAddress(ctfContractAddress)
		result, callErr := client.CallContract(ctx, ethereum.CallMsg{To: &contractAddr, Data: data}, nil)
		if callErr != nil {
			return nil, fmt.Errorf("call contract: %w", callErr)
		}
		return new(big.Int).SetBytes(result), nil
	})
}

// PayoutDenominator reads the resolution state for a condition.
func (c *CTFClient) PayoutDenominator(ctx context.Context, conditionID string) (*big.Int, error) {
	data, err := c.payoutABI.Pack("payoutDenominator", common.HexToHash(conditionID))
	if err != nil {
		return nil, fmt.Errorf("pack payoutDenominator: %w", err)
	}

	return rpcpool.Read(ctx, c.pool, "ctf-payout-denominator", func(ctx context.Context, client *ethclient.Client) (*big.Int, error) {
		contractAddr := common.HexToAddress(ctfContractAddress)
		result, callErr := client.CallContract(ctx, ethereum.CallMsg{To: &contractAddr, Data: data}, nil)
		if callErr != nil {
			return nil, fmt.Errorf("call contract: %w", callErr)
		}
		return new(big.Int).SetBytes(result), nil
	})
}

// Redeem submits redeemPositions for both outcome index sets of a binary
// condition and waits for one confirmation.
func (c *CTFClient) Redeem(ctx context.Context, conditionID string) (string, error) {
	if c.dryRun {
		c.logger.Info("dry-run-would-redeem",
			zap.String("condition_id", conditionID))
		return "", nil
	}

	// Both index sets: redeeming the losing side is a no-op on-chain, and
	// passing the pair means we never need to know which side won.
	indexSets := []*big.Int{big.NewInt(1), big.NewInt(2)}

	data, err := c.redeemABI.Pack("redeemPositions",
		common.HexToAddress(usdcAddress),
		common.Hash{}, // root-level condition, zero parent collection
		common.HexToHash(conditionID),
		indexSets)
	if err != nil {
		return "", fmt.Errorf("pack redeemPositions: %w", err)
	}

	return rpcpool.Write(ctx, c.pool, "ctf-redeem", func(ctx context.Context, client *ethclient.Client) (string, error) {
		nonce, txErr := client.PendingNonceAt(ctx, c.address)
		if txErr != nil {
			return "", fmt.Errorf("get nonce: %w", txErr)
		}

		gasPrice, txErr := client.SuggestGasPrice(ctx)
		if txErr != nil {
			return "", fmt.Errorf("suggest gas price: %w", txErr)
		}

		tx := ethtypes.NewTransaction(
			nonce,
			common.HexToAddress(ctfContractAddress),
			big.NewInt(0),
			uint64(redeemGasLimit),
			gasPrice,
			data,
		)

		signedTx, txErr := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(big.NewInt(polygonChainID)), c.privateKey)
		if txErr != nil {
			return "", fmt.Errorf("sign tx: %w", txErr)
		}

		if txErr = client.SendTransaction(ctx, signedTx); txErr != nil {
			return "", fmt.Errorf("send tx: %w", txErr)
		}

		c.logger.Info("redemption-tx-sent",
			zap.String("condition_id", conditionID),
			zap.String("tx_hash", signedTx.Hash().Hex()))

		receipt, txErr := bind.WaitMined(ctx, client, signedTx)
		if txErr != nil {
			return "", fmt.Errorf("wait for tx: %w", txErr)
		}
		if receipt.Status != ethtypes.ReceiptStatusSuccessful {
			return "", errors.New("redemption transaction reverted")
		}

		c.logger.Info("redemption-confirmed",
			zap.String("condition_id", conditionID),
			zap.String("tx_hash", receipt.TxHash.Hex()),
			zap.Uint64("gas_used", receipt.GasUsed))

		return receipt.TxHash.Hex(), nil
	})
}
