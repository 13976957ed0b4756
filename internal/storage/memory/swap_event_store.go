package memory

import (
	"context"
	"sync"

	"sonar/internal/domain"
	"sonar/internal/storage"
)

// SwapEventStore is an in-memory implementation of storage.SwapEventStore.
type SwapEventStore struct {
	mu   sync.RWMutex
	data map[domain.SwapEventKey]*domain.SwapEvent
}

// NewSwapEventStore creates a new in-memory swap event store.
func NewSwapEventStore() *SwapEventStore {
	return &SwapEventStore{
		data: make(map[domain.SwapEventKey]*domain.SwapEvent),
	}
}

// Compile-time interface check.
var _ storage.SwapEventStore = (*SwapEventStore)(nil)

// InsertIfAbsent commits the event unless its (signature, timestamp) key
// already exists. A duplicate is a no-op, not an error.
func (s *SwapEventStore) InsertIfAbsent(_ context.Context, e *domain.SwapEvent) (bool, error) {
	if e == nil || e.Signature == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := e.Key()
	if _, exists := s.data[key]; exists {
		return false, nil
	}

	clone := *e
	clone.Signers = append([]string(nil), e.Signers...)
	s.data[key] = &clone
	return true, nil
}

// Query returns events for (pair, pubkey) with timestamp in [start, end),
// ordered by (timestamp, slot, signature).
func (s *SwapEventStore) Query(_ context.Context, pair, pubkey string, start, end int64) ([]*domain.SwapEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapEvent
	for _, e := range s.data {
		if e.Pair != pair || e.Pubkey != pubkey {
			continue
		}
		if e.Timestamp < start || e.Timestamp >= end {
			continue
		}
		clone := *e
		clone.Signers = append([]string(nil), e.Signers...)
		result = append(result, &clone)
	}

	domain.SortEvents(result)
	return result, nil
}

// Len returns the number of stored events.
func (s *SwapEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
