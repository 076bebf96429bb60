package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry is the mutex-guarded set of active sessions, keyed by market ID.
// The lock is only ever held for O(1) map operations; all session mutation
// happens on snapshots outside the lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Has reports whether a session exists for the market ID.
func (r *Registry) Has(marketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[marketID]
	return ok
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Insert adds a session. If a session already exists for the market ID the
// call is a no-op and returns false: exactly one session per market,
// regardless of how many loops race on admission.
func (r *Registry) Insert(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := s.Market.ID
	if _, exists := r.sessions[key]; exists {
		return false
	}

	r.sessions[key] = s
	ActiveSessions.Set(float64(len(r.sessions)))
	r.logger.Info("session-inserted",
		zap.String("market", key),
		zap.String("label", s.Market.Label))
	return true
}

// Remove deletes a session by market ID.
func (r *Registry) Remove(marketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[marketID]; !exists {
		return
	}
	delete(r.sessions, marketID)
	ActiveSessions.Set(float64(len(r.sessions)))
}

// Snapshot returns a point-in-time copy of the session pointers, for safe
// iteration outside the lock.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Cleanup removes every session that has outlived its market window by more
// than threshold. This is protection against a session that never reaches
// resolution due to an upstream bug.
func (r *Registry) Cleanup(now time.Time, threshold time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	for key, s := range r.sessions {
		if s.Stale(now, threshold) {
			delete(r.sessions, key)
			removed++
			StaleCleanupsTotal.Inc()
			r.logger.Warn("stale-session-removed",
				zap.String("market", key),
				zap.String("label", s.Market.Label),
				zap.Time("start_time", s.Market.StartTime))
		}
	}

	if removed > 0 {
		ActiveSessions.Set(float64(len(r.sessions)))
	}
	return removed
}
