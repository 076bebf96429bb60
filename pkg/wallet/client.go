package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/rpcpool"
)

const (
	polygonUSDC        = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	polygonCTFExchange = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
)

const (
	balanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`
	allowanceABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`
)

// Client reads wallet balances from Polygon through the shared RPC pool.
type Client struct {
	pool   *rpcpool.Pool
	logger *zap.Logger

	balanceABI   abi.ABI
	allowanceABI abi.ABI
}

// Balances holds on-chain token balances.
type Balances struct {
	MATIC         *big.Int // in wei
	USDC          *big.Int // in 6-decimal units
	USDCAllowance *big.Int // in 6-decimal units, CTF exchange spender
}

// MATICValue returns the MATIC balance as a float.
func (b *Balances) MATICValue() float64 {
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(b.MATIC), big.NewFloat(1e18)).Float64()
	return v
}

// USDCValue returns the USDC balance as a float.
func (b *Balances) USDCValue() float64 {
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(b.USDC), big.NewFloat(1e6)).Float64()
	return v
}

// AllowanceValue returns the USDC allowance as a float.
func (b *Balances) AllowanceValue() float64 {
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(b.USDCAllowance), big.NewFloat(1e6)).Float64()
	return v
}

// NewClient creates a new wallet client over the given RPC pool.
func NewClient(pool *rpcpool.Pool, logger *zap.Logger) (*Client, error) {
	if pool == nil {
		return nil, errors.New("pool cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client := &Client{
		pool:   pool,
		logger: logger,
	}

	var err error
	if client.balanceABI, err = abi.JSON(strings.NewReader(balanceOfABI)); err != nil {
		return nil, fmt.Errorf("parse balanceOf ABI: %w", err)
	}
	if client.allowanceABI, err = abi.JSON(strings.NewReader(allowanceABI)); err != nil {
		return nil, fmt.Errorf("parse allowance ABI: %w", err)
	}

	return client, nil
}

// GetBalances fetches the MATIC balance, USDC balance and the USDC
// allowance granted to the CTF exchange.
func (c *Client) GetBalances(ctx context.Context, address common.Address) (*Balances, error) {
	matic, err := rpcpool.Read(ctx, c.pool, "wallet-matic-balance", func(ctx context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.BalanceAt(ctx, address, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("get MATIC balance: %w", err)
	}

	usdc, err := c.erc20Balance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get USDC balance: %w", err)
	}

	allowance, err := c.erc20Allowance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get USDC allowance: %w", err)
	}

	return &Balances{
		MATIC:         matic,
		USDC:          usdc,
		USDCAllowance: allowance,
	}, nil
}

func (c *Client) erc20Balance(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := c.balanceABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	return rpcpool.Read(ctx, c.pool, "wallet-usdc-balance", func(ctx context.Context, client *ethclient.Client) (*big.Int, error) {
		tokenAddr := common.HexToAddress(polygonUSDC)
		result, callErr := client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
		if callErr != nil {
			return nil, fmt.Errorf("call contract: %w", callErr)
		}
		return new(big.Int).SetBytes(result), nil
	})
}

func (c *Client) erc20Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := c.allowanceABI.Pack("allowance", owner, common.HexToAddress(polygonCTFExchange))
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}

	return rpcpool.Read(ctx, c.pool, "wallet-usdc-allowance", func(ctx context.Context, client *ethclient.Client) (*big.Int, error) {
		tokenAddr := common.HexToAddress(polygonUSDC)
		result, callErr := client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
		if callErr != nil {
			return nil, fmt.Errorf("call contract: %w", callErr)
		}
		return new(big.Int).SetBytes(result), nil
	})
}
