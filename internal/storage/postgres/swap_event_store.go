package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sonar/internal/domain"
	"sonar/internal/storage"
)

// SwapEventStore implements storage.SwapEventStore using PostgreSQL.
// Idempotence rides on the (signature, timestamp) primary key and
// ON CONFLICT DO NOTHING; a losing concurrent insert is reported as a
// duplicate, never as an error.
type SwapEventStore struct {
	pool *Pool
}

// NewSwapEventStore creates a new SwapEventStore.
func NewSwapEventStore(pool *Pool) *SwapEventStore {
	return &SwapEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapEventStore = (*SwapEventStore)(nil)

// InsertIfAbsent commits the event unless its key already exists.
func (s *SwapEventStore) InsertIfAbsent(ctx context.Context, e *domain.SwapEvent) (bool, error) {
	if e == nil || e.Signature == "" {
		return false, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO swap_events (
			pair, pubkey, price, market_cap, base_amount, quote_amount,
			swap_amount, owner, signers, is_buy, is_pump, price_stale,
			slot, signature, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (signature, timestamp) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		e.Pair,
		e.Pubkey,
		e.Price,
		e.MarketCap,
		e.BaseAmount,
		e.QuoteAmount,
		e.SwapAmount,
		e.Owner,
		e.Signers,
		e.IsBuy,
		e.IsPump,
		e.PriceStale,
		e.Slot,
		e.Signature,
		e.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert swap event: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Query retrieves events for (pair, pubkey) with timestamp in [start, end),
// in the canonical (timestamp, slot, signature) order.
func (s *SwapEventStore) Query(ctx context.Context, pair, pubkey string, start, end int64) ([]*domain.SwapEvent, error) {
	query := `
		SELECT pair, pubkey, price, market_cap, base_amount, quote_amount,
		       swap_amount, owner, signers, is_buy, is_pump, price_stale,
		       slot, signature, timestamp
		FROM swap_events
		WHERE pair = $1 AND pubkey = $2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp ASC, slot ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, pair, pubkey, start, end)
	if err != nil {
		return nil, fmt.Errorf("query swap events: %w", err)
	}
	defer rows.Close()

	return scanSwapEvents(rows)
}

// scanSwapEvents scans multiple rows into a slice of SwapEvent.
func scanSwapEvents(rows pgx.Rows) ([]*domain.SwapEvent, error) {
	var events []*domain.SwapEvent

	for rows.Next() {
		var e domain.SwapEvent

		err := rows.Scan(
			&e.Pair,
			&e.Pubkey,
			&e.Price,
			&e.MarketCap,
			&e.BaseAmount,
			&e.QuoteAmount,
			&e.SwapAmount,
			&e.Owner,
			&e.Signers,
			&e.IsBuy,
			&e.IsPump,
			&e.PriceStale,
			&e.Slot,
			&e.Signature,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap event row: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap event rows: %w", err)
	}

	return events, nil
}
