package redeem

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/rpcpool"
)

// Well-known throwaway key; derives 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testWalletAddress = "0x9965507D1a55bcC2695C58ba16FB37d819B0A4dc"

func ctfTestPool(t *testing.T) *rpcpool.Pool {
	t.Helper()

	pool, err := rpcpool.NewPool(&rpcpool.Config{
		Endpoints:   []string{"http://localhost:8545"},
		CallTimeout: time.Second,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	return pool
}

func TestNewCTFClientResolvesAddress(t *testing.T) {
	pool := ctfTestPool(t)

	tests := []struct {
		name        string
		privateKey  string
		address     string
		dryRun      bool
		wantAddress string
		wantErr     bool
	}{
		{
			name:        "live-with-key",
			privateKey:  testPrivateKey,
			wantAddress: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		},
		{
			name:        "dry-run-with-key",
			privateKey:  testPrivateKey,
			dryRun:      true,
			wantAddress: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		},
		{
			name:        "dry-run-with-address-only",
			address:     testWalletAddress,
			dryRun:      true,
			wantAddress: testWalletAddress,
		},
		{
			name:    "live-without-key",
			address: testWalletAddress,
			wantErr: true,
		},
		{
			// Without an address every balance read would target the zero
			// address and report pending claims as empty.
			name:    "dry-run-without-key-or-address",
			dryRun:  true,
			wantErr: true,
		},
		{
			name:       "bad-private-key",
			privateKey: "not-hex",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewCTFClient(&CTFConfig{
				Pool:       pool,
				PrivateKey: tt.privateKey,
				Address:    tt.address,
				DryRun:     tt.dryRun,
				Logger:     zap.NewNop(),
			})

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(tt.wantAddress), client.Address())
			assert.NotEqual(t, common.Address{}, client.Address())
		})
	}
}
