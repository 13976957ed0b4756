// Package pricecache provides the local USD price lookup used by
// enrichment. The cache is fed by an external price-feed fetcher and is
// read-only from the pipeline's perspective.
package pricecache

import (
	"sort"
	"sync"
)

// Entry is a known USD price for an asset at a point in time.
type Entry struct {
	Price float64
	AsOf  int64 // seconds
}

// Cache answers point-in-time USD price lookups for quote assets.
// Lookups are local and must never block the pipeline on I/O.
type Cache interface {
	// Get returns the most recent price for the asset with
	// as_of <= ts. ok is false when no such entry exists.
	Get(asset string, ts int64) (Entry, bool)
}

// Feed is the write side, driven by the external price fetcher.
type Feed interface {
	Put(asset string, price float64, asOf int64)
}

// MemoryCache keeps a bounded per-asset price history in memory.
type MemoryCache struct {
	mu      sync.RWMutex
	history map[string][]Entry // ascending by AsOf
	maxLen  int
}

// NewMemoryCache creates a cache keeping up to maxLen entries per asset.
func NewMemoryCache(maxLen int) *MemoryCache {
	if maxLen <= 0 {
		maxLen = 1024
	}
	return &MemoryCache{
		history: make(map[string][]Entry),
		maxLen:  maxLen,
	}
}

// Compile-time interface checks.
var (
	_ Cache = (*MemoryCache)(nil)
	_ Feed  = (*MemoryCache)(nil)
)

// Put records a price observation. Out-of-order observations are inserted
// in as_of position so Get stays correct for historical lookups.
func (c *MemoryCache) Put(asset string, price float64, asOf int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.history[asset]
	i := sort.Search(len(h), func(i int) bool { return h[i].AsOf >= asOf })
	if i < len(h) && h[i].AsOf == asOf {
		h[i].Price = price
	} else {
		h = append(h, Entry{})
		copy(h[i+1:], h[i:])
		h[i] = Entry{Price: price, AsOf: asOf}
	}
	if len(h) > c.maxLen {
		h = h[len(h)-c.maxLen:]
	}
	c.history[asset] = h
}

// Get returns the most recent entry with as_of <= ts.
func (c *MemoryCache) Get(asset string, ts int64) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h := c.history[asset]
	i := sort.Search(len(h), func(i int) bool { return h[i].AsOf > ts })
	if i == 0 {
		return Entry{}, false
	}
	return h[i-1], true
}
