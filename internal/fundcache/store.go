package fundcache

import (
	"context"
	"sync"
	"time"

	"github.com/quantgrid/oppscan/internal/contracts"
)

// Entry is one cached fundamentals snapshot. Entries are addressed by
// symbol only: one entry per symbol, last-write-wins on refresh.
type Entry struct {
	Fundamentals contracts.Fundamentals
	FetchedAt    time.Time
}

// Store is the persistence backing for the fundamentals cache. Get
// returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, symbol string) (*Entry, error)
	Put(ctx context.Context, symbol string, entry Entry) error
}

// MemoryStore is an in-process Store. Used by the mock provider setup
// and throughout tests; production wiring uses the postgres store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, symbol string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[symbol]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryStore) Put(_ context.Context, symbol string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[symbol] = entry
	return nil
}

// Len returns the number of cached symbols.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
