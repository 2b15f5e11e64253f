package inmemory

import (
	"context"
	"sync"

	"cloud.google.com/go/civil"
)

type key struct {
	userID string
	day    civil.Date
}

// Store is an in-memory usage counter store, safe for concurrent use.
// Counts are lost on restart; use it for tests and single-instance development.
type Store struct {
	mu     sync.Mutex
	counts map[key]int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{counts: make(map[key]int64)}
}

// Count implements usage.Store.
func (s *Store) Count(_ context.Context, userID string, day civil.Date) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key{userID, day}], nil
}

// Increment implements usage.Store. The read and write happen under one lock,
// which makes the increment atomic with respect to other callers.
func (s *Store) Increment(_ context.Context, userID string, day civil.Date) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{userID, day}
	s.counts[k]++
	return s.counts[k], nil
}
