package rpcpool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Endpoint is one JSON-RPC target with its health score. Endpoints are never
// removed from the pool, only re-ranked as failures accumulate and decay.
type Endpoint struct {
	URL     string
	Premium bool // authenticated/private endpoint, preferred for writes

	mu            sync.Mutex
	failureCount  int
	lastSuccessAt time.Time
	lastFailureAt time.Time
}

// recordFailure increments the failure counter and timestamps it.
func (e *Endpoint) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failureCount++
	e.lastFailureAt = time.Now()
}

// recordSuccess decays the failure counter by one, floored at zero.
func (e *Endpoint) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failureCount > 0 {
		e.failureCount--
	}
	e.lastSuccessAt = time.Now()
}

// reset clears the failure counter entirely. Only called after a validated
// success that followed a retry sequence.
func (e *Endpoint) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failureCount = 0
	e.lastSuccessAt = time.Now()
}

// health returns the current score fields under the lock.
func (e *Endpoint) health() (failures int, lastSuccess time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.failureCount, e.lastSuccessAt
}

// Status is a point-in-time view of one endpoint's health, for debugging
// and the HTTP status surface.
type Status struct {
	URL           string    `json:"url"`
	Premium       bool      `json:"premium"`
	FailureCount  int       `json:"failureCount"`
	LastSuccessAt time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt time.Time `json:"lastFailureAt,omitempty"`
}

// Pool holds the ranked endpoint set shared by all read/write operations.
type Pool struct {
	endpoints   []*Endpoint
	callTimeout time.Duration
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *zap.Logger
}

// Config holds pool configuration.
type Config struct {
	Endpoints        []string // public endpoints
	PremiumEndpoints []string // authenticated endpoints, preferred for writes
	CallTimeout      time.Duration
	BackoffBase      time.Duration // defaults to 1s
	BackoffCap       time.Duration // defaults to 16s
	Logger           *zap.Logger
}

// NewPool creates a pool over the configured endpoint URLs.
func NewPool(cfg *Config) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(cfg.Endpoints)+len(cfg.PremiumEndpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 12 * time.Second
	}

	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 1 * time.Second
	}

	backoffCap := cfg.BackoffCap
	if backoffCap <= 0 {
		backoffCap = 16 * time.Second
	}

	endpoints := make([]*Endpoint, 0, len(cfg.Endpoints)+len(cfg.PremiumEndpoints))
	for _, url := range cfg.PremiumEndpoints {
		endpoints = append(endpoints, &Endpoint{URL: url, Premium: true})
	}
	for _, url := range cfg.Endpoints {
		endpoints = append(endpoints, &Endpoint{URL: url})
	}

	EndpointCount.Set(float64(len(endpoints)))

	return &Pool{
		endpoints:   endpoints,
		callTimeout: callTimeout,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
		logger:      cfg.Logger,
	}, nil
}

// Size returns the total endpoint count.
func (p *Pool) Size() int {
	return len(p.endpoints)
}

// ranked returns all endpoints ordered ascending by failure count,
// tie-broken by most recent success. With premiumFirst set, premium
// endpoints sort ahead of public ones regardless of score.
func (p *Pool) ranked(premiumFirst bool) []*Endpoint {
	out := make([]*Endpoint, len(p.endpoints))
	copy(out, p.endpoints)

	type score struct {
		failures    int
		lastSuccess time.Time
	}
	scores := make(map[*Endpoint]score, len(out))
	for _, ep := range out {
		failures, lastSuccess := ep.health()
		scores[ep] = score{failures: failures, lastSuccess: lastSuccess}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if premiumFirst && a.Premium != b.Premium {
			return a.Premium
		}
		sa, sb := scores[a], scores[b]
		if sa.failures != sb.failures {
			return sa.failures < sb.failures
		}
		return sa.lastSuccess.After(sb.lastSuccess)
	})

	return out
}

// Statuses returns a snapshot of every endpoint's health.
func (p *Pool) Statuses() []Status {
	out := make([]Status, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		ep.mu.Lock()
		out = append(out, Status{
			URL:           ep.URL,
			Premium:       ep.Premium,
			FailureCount:  ep.failureCount,
			LastSuccessAt: ep.lastSuccessAt,
			LastFailureAt: ep.lastFailureAt,
		})
		ep.mu.Unlock()
	}
	return out
}
