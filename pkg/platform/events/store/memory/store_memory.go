package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	id "becoming/pkg/domain"
	"becoming/pkg/platform/events"
)

// InMemoryStore keeps the outbox in process. Events are kept in append order
// until pruned after delivery.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    []events.Event
	published map[uuid.UUID]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{published: make(map[uuid.UUID]time.Time)}
}

func (s *InMemoryStore) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.events...), nil
}

// ListByTopic returns the events indexed under account, in append order.
func (s *InMemoryStore) ListByTopic(_ context.Context, account id.AccountID) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Event
	for _, e := range s.events {
		if e.HasTopic(account) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Unpublished(_ context.Context, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Event
	for _, e := range s.events {
		if _, done := s.published[e.ID]; done {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eventID := range ids {
		s.published[eventID] = at
	}
	return nil
}

func (s *InMemoryStore) PrunePublished(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	removed := 0
	for _, e := range s.events {
		if at, done := s.published[e.ID]; done && at.Before(cutoff) {
			delete(s.published, e.ID)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.published = make(map[uuid.UUID]time.Time)
}
