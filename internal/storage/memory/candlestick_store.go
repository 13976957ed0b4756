package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sonar/internal/domain"
	"sonar/internal/storage"
)

// CandlestickStore is an in-memory implementation of storage.CandlestickStore.
type CandlestickStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candlestick
}

// NewCandlestickStore creates a new in-memory candlestick store.
func NewCandlestickStore() *CandlestickStore {
	return &CandlestickStore{
		data: make(map[string]*domain.Candlestick),
	}
}

// Compile-time interface check.
var _ storage.CandlestickStore = (*CandlestickStore)(nil)

func candleKey(pair, pubkey string, interval domain.Interval, timestamp int64) string {
	return fmt.Sprintf("%s|%s|%d|%d", pair, pubkey, interval, timestamp)
}

// Upsert writes the candlestick, fully replacing any prior row for its key.
func (s *CandlestickStore) Upsert(_ context.Context, c *domain.Candlestick) error {
	if c == nil || c.Pair == "" || !c.Interval.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *c
	s.data[candleKey(c.Pair, c.Pubkey, c.Interval, c.Timestamp)] = &clone
	return nil
}

// GetByKey retrieves a single candlestick. Returns ErrNotFound if missing.
func (s *CandlestickStore) GetByKey(_ context.Context, pair, pubkey string, interval domain.Interval, timestamp int64) (*domain.Candlestick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[candleKey(pair, pubkey, interval, timestamp)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

// GetRange retrieves candlesticks for a key with bucket start in [start, end),
// ordered by timestamp ASC.
func (s *CandlestickStore) GetRange(_ context.Context, pair, pubkey string, interval domain.Interval, start, end int64) ([]*domain.Candlestick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candlestick
	for _, c := range s.data {
		if c.Pair != pair || c.Pubkey != pubkey || c.Interval != interval {
			continue
		}
		if c.Timestamp < start || c.Timestamp >= end {
			continue
		}
		clone := *c
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}
