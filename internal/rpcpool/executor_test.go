package rpcpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Endpoints here use http URLs that are never contacted: dialing an HTTP
// JSON-RPC endpoint is lazy, so the scripted op controls every outcome.

func TestReadSucceedsAfterTransientFailures(t *testing.T) {
	pool := newTestPool(t, []string{"http://a", "http://b", "http://c"}, nil)

	calls := 0
	op := func(ctx context.Context, client *ethclient.Client) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	}

	result, err := Read(context.Background(), pool, "test-read", op)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestReadTerminalErrorNotRetried(t *testing.T) {
	pool := newTestPool(t, []string{"http://a", "http://b", "http://c"}, nil)

	calls := 0
	terminal := errors.New("execution reverted: market not resolved")
	op := func(ctx context.Context, client *ethclient.Client) (int, error) {
		calls++
		return 0, terminal
	}

	_, err := Read(context.Background(), pool, "test-read", op)
	require.Error(t, err)
	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls, "terminal errors must surface immediately")
	assert.False(t, errors.Is(err, ErrAllEndpointsExhausted))
}

func TestReadExhaustsAllRounds(t *testing.T) {
	pool := newTestPool(t, []string{"http://a", "http://b"}, nil)

	calls := 0
	last := errors.New("rate limited")
	op := func(ctx context.Context, client *ethclient.Client) (int, error) {
		calls++
		return 0, last
	}

	_, err := Read(context.Background(), pool, "test-read", op)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllEndpointsExhausted)
	assert.ErrorIs(t, err, last, "last underlying error is carried")
	assert.Equal(t, 2*readMaxRounds, calls, "every endpoint tried every round")
}

func TestWriteHasLowerRetryCeiling(t *testing.T) {
	pool := newTestPool(t, []string{"http://a"}, []string{"http://prem"})

	calls := 0
	op := func(ctx context.Context, client *ethclient.Client) (struct{}, error) {
		calls++
		return struct{}{}, errors.New("timeout")
	}

	_, err := Write(context.Background(), pool, "test-write", op)
	require.ErrorIs(t, err, ErrAllEndpointsExhausted)
	assert.Equal(t, 2*writeMaxRounds, calls)
}

func TestExecuteRespectsContextCancellation(t *testing.T) {
	pool := newTestPool(t, []string{"http://a", "http://b"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	op := func(ctx context.Context, client *ethclient.Client) (int, error) {
		cancel()
		return 0, errors.New("timeout")
	}

	_, err := Read(ctx, pool, "test-read", op)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffMonotonicAndBounded(t *testing.T) {
	pool := newTestPool(t, []string{"http://a"}, nil)
	pool.backoffBase = time.Second
	pool.backoffCap = 16 * time.Second

	prev := time.Duration(0)
	for round := 0; round < 10; round++ {
		delay := pool.backoffDelay(round)
		assert.GreaterOrEqual(t, delay, prev, "backoff must be non-decreasing")
		assert.LessOrEqual(t, delay, 16*time.Second, "backoff must be capped")
		prev = delay
	}

	assert.Equal(t, time.Second, pool.backoffDelay(0))
	assert.Equal(t, 2*time.Second, pool.backoffDelay(1))
	assert.Equal(t, 16*time.Second, pool.backoffDelay(4))
	assert.Equal(t, 16*time.Second, pool.backoffDelay(60), "shift overflow clamps to cap")
}

func TestRoundWidth(t *testing.T) {
	assert.Equal(t, 3, roundWidth(0, 10))
	assert.Equal(t, 5, roundWidth(1, 10))
	assert.Equal(t, 10, roundWidth(2, 10))
	assert.Equal(t, 2, roundWidth(0, 2), "width never exceeds pool size")
}

func TestSuccessAfterRetryResetsScore(t *testing.T) {
	pool := newTestPool(t, []string{"http://a"}, nil)

	calls := 0
	op := func(ctx context.Context, client *ethclient.Client) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("timeout")
		}
		return 1, nil
	}

	_, err := Read(context.Background(), pool, "test-read", op)
	require.NoError(t, err)

	failures, _ := pool.endpoints[0].health()
	assert.Equal(t, 0, failures, "validated success after retry resets the counter")
}
