// Package memstore provides an in-memory implementation of recent.Store.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/pulse/internal/signal"
)

// Store keeps per-lead signal windows in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	byLead  map[string][]signal.Signal // oldest first
	ttl     time.Duration
	perLead int
	now     func() time.Time
}

// New initializes a new in-memory Store with the given retention and
// per-lead cap. Non-positive values take the same defaults as the Redis
// implementation.
func New(ttl time.Duration, perLead int) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if perLead <= 0 {
		perLead = 200
	}
	return &Store{
		byLead:  make(map[string][]signal.Signal),
		ttl:     ttl,
		perLead: perLead,
		now:     time.Now,
	}
}

// Append records a signal, evicting past the per-lead cap.
func (s *Store) Append(_ context.Context, sig signal.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.byLead[sig.LeadID], sig)
	if excess := len(window) - s.perLead; excess > 0 {
		window = window[excess:]
	}
	s.byLead[sig.LeadID] = window
	return nil
}

// Recent returns the lead's cached signals newer than the retention
// horizon, oldest first.
func (s *Store) Recent(_ context.Context, leadID string) ([]signal.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	horizon := s.now().Add(-s.ttl)
	var out []signal.Signal
	for _, sig := range s.byLead[leadID] {
		if sig.Timestamp.Before(horizon) {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}
