package redeem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Store persists the full set of BetRecords. Implementations must make Save
// atomic: a crash mid-save leaves the previously persisted state readable.
type Store interface {
	Load(ctx context.Context) ([]BetRecord, error)
	Save(ctx context.Context, records []BetRecord) error
	Close() error
}

// Ledger is the mutex-serialized BetRecord set. All mutation goes through
// Insert or Update, each of which persists before releasing the lock.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	records map[string]*BetRecord
	logger  *zap.Logger
}

// NewLedger loads the persisted record set from the store.
func NewLedger(ctx context.Context, store Store, logger *zap.Logger) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	records := make(map[string]*BetRecord, len(loaded))
	for i := range loaded {
		rec := loaded[i]
		records[rec.Key()] = &rec
	}

	logger.Info("ledger-loaded",
		zap.Int("records", len(records)))

	return &Ledger{
		store:   store,
		records: records,
		logger:  logger,
	}, nil
}

// Insert validates and adds a record, then persists. Inserting an existing
// (conditionId, tokenId) pair is a no-op, never a second entry.
func (l *Ledger) Insert(ctx context.Context, record BetRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid bet record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := record.Key()
	if _, exists := l.records[key]; exists {
		l.logger.Debug("ledger-duplicate-insert-ignored",
			zap.String("key", key))
		return nil
	}

	l.records[key] = &record
	InsertsTotal.Inc()
	RecordCount.Set(float64(len(l.records)))

	l.logger.Info("bet-record-inserted",
		zap.String("condition_id", record.ConditionID),
		zap.String("token_id", record.TokenID),
		zap.String("market", record.MarketLabel),
		zap.String("side", record.Side.String()))

	return l.persist(ctx)
}

// Update runs fn over every record while holding the ledger lock for the
// entire call, then persists once. A crash inside fn leaves the previously
// persisted state on disk, never a partial write.
func (l *Ledger) Update(ctx context.Context, fn func(records []*BetRecord) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make([]*BetRecord, 0, len(l.records))
	for _, rec := range l.records {
		snapshot = append(snapshot, rec)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		if !snapshot[i].CreatedAt.Equal(snapshot[j].CreatedAt) {
			return snapshot[i].CreatedAt.Before(snapshot[j].CreatedAt)
		}
		return snapshot[i].Key() < snapshot[j].Key()
	})

	if err := fn(snapshot); err != nil {
		return err
	}

	return l.persist(ctx)
}

// Records returns a point-in-time copy of every record.
func (l *Ledger) Records() []BetRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]BetRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// PendingCount returns the number of unredeemed records.
func (l *Ledger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pending int
	for _, rec := range l.records {
		if !rec.Redeemed {
			pending++
		}
	}
	return pending
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

// persist writes the current set. Caller must hold l.mu.
func (l *Ledger) persist(ctx context.Context) error {
	out := make([]BetRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key() < out[j].Key()
	})

	if err := l.store.Save(ctx, out); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}
