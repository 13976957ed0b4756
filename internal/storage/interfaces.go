package storage

import (
	"context"

	"sonar/internal/domain"
)

// SwapEventStore is the append-only fact store for committed swap events.
// Rows are never updated or deleted; (signature, timestamp) identifies a row.
type SwapEventStore interface {
	// InsertIfAbsent commits the event unless a row with the same
	// (signature, timestamp) already exists. Returns true when a new row
	// was inserted, false for a duplicate. Duplicates are not an error.
	InsertIfAbsent(ctx context.Context, e *domain.SwapEvent) (bool, error)

	// Query returns events for (pair, pubkey) with timestamp in the
	// half-open range [start, end), ordered by (timestamp, slot, signature).
	Query(ctx context.Context, pair, pubkey string, start, end int64) ([]*domain.SwapEvent, error)
}

// CandlestickStore holds derived OHLCV rows with replace-on-conflict
// semantics: an upsert for an existing (pair, pubkey, interval, timestamp)
// key fully supersedes the prior row.
type CandlestickStore interface {
	// Upsert writes the candlestick, replacing any prior row for its key.
	Upsert(ctx context.Context, c *domain.Candlestick) error

	// GetByKey retrieves a single candlestick. Returns ErrNotFound if the
	// bucket has never been aggregated.
	GetByKey(ctx context.Context, pair, pubkey string, interval domain.Interval, timestamp int64) (*domain.Candlestick, error)

	// GetRange retrieves candlesticks for a key with bucket start in
	// [start, end), ordered by timestamp ASC.
	GetRange(ctx context.Context, pair, pubkey string, interval domain.Interval, start, end int64) ([]*domain.Candlestick, error)
}
