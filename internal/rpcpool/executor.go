package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	readMaxRounds  = 5
	writeMaxRounds = 3
)

// ErrAllEndpointsExhausted is returned when every retry round failed.
// The last underlying error is attached via wrapping.
var ErrAllEndpointsExhausted = errors.New("all endpoints exhausted")

// Op is a single logical operation against one connection handle. It must be
// a pure function of the client so it can be replayed against any endpoint.
type Op[T any] func(ctx context.Context, client *ethclient.Client) (T, error)

// Read executes op against the healthiest endpoints, widening the candidate
// set each retry round (3, then 5, then all) and backing off exponentially
// between rounds.
func Read[T any](ctx context.Context, p *Pool, name string, op Op[T]) (T, error) {
	return execute(ctx, p, name, op, readMaxRounds, false)
}

// Write executes op with premium endpoints preferred. Writes are rate- and
// trust-sensitive, so the retry ceiling is lower than for reads.
func Write[T any](ctx context.Context, p *Pool, name string, op Op[T]) (T, error) {
	return execute(ctx, p, name, op, writeMaxRounds, true)
}

func execute[T any](ctx context.Context, p *Pool, name string, op Op[T], maxRounds int, premiumFirst bool) (T, error) {
	var zero T
	var lastErr error

	kind := "read"
	if premiumFirst {
		kind = "write"
	}

	for round := 0; round < maxRounds; round++ {
		if round > 0 {
			delay := p.backoffDelay(round - 1)
			p.logger.Warn("rpc-round-backoff",
				zap.String("op", name),
				zap.Int("round", round),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			RetryRoundsTotal.WithLabelValues(kind).Inc()

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		candidates := p.ranked(premiumFirst)
		k := roundWidth(round, len(candidates))

		for _, ep := range candidates[:k] {
			result, err := tryEndpoint(ctx, p, ep, op)
			if err == nil {
				ep.recordSuccess()
				if round > 0 {
					// Validated success after a retry sequence clears the score.
					ep.reset()
				}
				CallsTotal.WithLabelValues(kind, "success").Inc()
				return result, nil
			}

			if ctx.Err() != nil {
				return zero, ctx.Err()
			}

			if Terminal(err) {
				// Deterministic failure: retrying against another endpoint
				// cannot change the outcome.
				CallsTotal.WithLabelValues(kind, "terminal").Inc()
				p.logger.Warn("rpc-terminal-error",
					zap.String("op", name),
					zap.String("endpoint", ep.URL),
					zap.Error(err))
				return zero, err
			}

			ep.recordFailure()
			lastErr = err
			CallsTotal.WithLabelValues(kind, "transient").Inc()
			p.logger.Debug("rpc-endpoint-failed",
				zap.String("op", name),
				zap.String("endpoint", ep.URL),
				zap.Error(err))
		}
	}

	ExhaustionsTotal.WithLabelValues(kind).Inc()
	return zero, fmt.Errorf("%s: %w: %w", name, ErrAllEndpointsExhausted, lastErr)
}

func tryEndpoint[T any](ctx context.Context, p *Pool, ep *Endpoint, op Op[T]) (T, error) {
	var zero T

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	client, err := ethclient.DialContext(callCtx, ep.URL)
	if err != nil {
		return zero, fmt.Errorf("dial %s: %w", ep.URL, err)
	}
	defer client.Close()

	start := time.Now()
	result, err := op(callCtx, client)
	CallDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return zero, err
	}

	return result, nil
}

// roundWidth returns how many of the ranked endpoints to try in a round:
// small at first, widening to the full set.
func roundWidth(round, total int) int {
	var k int
	switch round {
	case 0:
		k = 3
	case 1:
		k = 5
	default:
		k = total
	}
	if k > total {
		k = total
	}
	return k
}

// backoffDelay returns the exponential backoff for the given completed round,
// capped so a stuck RPC layer never stalls a loop past the configured cap.
func (p *Pool) backoffDelay(round int) time.Duration {
	delay := p.backoffBase << round
	if delay > p.backoffCap || delay <= 0 {
		return p.backoffCap
	}
	return delay
}
