package throttle

import (
	"context"
	"sync"
	"time"
)

type counterKey struct {
	participantID int64
	date          string
}

// InMemoryStore keeps daily counters in a mutex-guarded map. It is used
// in tests and as a fallback when no database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	counters map[counterKey]int
}

// NewInMemoryStore creates an empty in-memory counter store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{counters: make(map[counterKey]int)}
}

func (s *InMemoryStore) key(participantID int64, date time.Time) counterKey {
	return counterKey{participantID: participantID, date: date.Format("2006-01-02")}
}

// CountFor returns the number of attempts recorded for the participant
// on the given calendar date.
func (s *InMemoryStore) CountFor(_ context.Context, participantID int64, date time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[s.key(participantID, date)], nil
}

// Increment bumps the participant's counter for the given date.
func (s *InMemoryStore) Increment(_ context.Context, participantID int64, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[s.key(participantID, date)]++
	return nil
}
