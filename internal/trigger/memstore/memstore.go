// Package memstore provides an in-memory implementation of trigger.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/pulse/internal/trigger"
)

// Store holds triggers in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	triggers map[string]*trigger.Trigger // trigger ID -> trigger
	byLead   map[string][]string         // lead ID -> trigger IDs, oldest first
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		triggers: make(map[string]*trigger.Trigger),
		byLead:   make(map[string][]string),
	}
}

// Get retrieves a trigger by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*trigger.Trigger, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.triggers[id]
	if !ok {
		return nil, false, nil
	}
	cp := *t
	return &cp, true, nil
}

// Put stores a copy of the trigger.
func (s *Store) Put(_ context.Context, t *trigger.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.triggers[t.ID]; !seen {
		s.byLead[t.LeadID] = append(s.byLead[t.LeadID], t.ID)
	}
	cp := *t
	s.triggers[t.ID] = &cp
	return nil
}

// ListByLead returns up to limit of the lead's most recent triggers,
// newest first. A non-positive limit means no cap.
func (s *Store) ListByLead(_ context.Context, leadID string, limit int) ([]*trigger.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byLead[leadID]
	out := make([]*trigger.Trigger, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *s.triggers[ids[i]]
		out = append(out, &cp)
	}
	return out, nil
}
