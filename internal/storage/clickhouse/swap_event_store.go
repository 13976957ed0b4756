package clickhouse

import (
	"context"
	"fmt"

	"sonar/internal/domain"
	"sonar/internal/storage"
)

// SwapEventStore implements storage.SwapEventStore using ClickHouse.
//
// MergeTree engines enforce no uniqueness at insert time, so idempotence
// is a pre-insert existence check plus the ReplacingMergeTree key to
// collapse the rare concurrent double insert at merge time. Queries read
// with FINAL so un-merged duplicates never surface.
type SwapEventStore struct {
	conn *Conn
}

// NewSwapEventStore creates a new SwapEventStore.
func NewSwapEventStore(conn *Conn) *SwapEventStore {
	return &SwapEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SwapEventStore = (*SwapEventStore)(nil)

// InsertIfAbsent commits the event unless its key already exists.
func (s *SwapEventStore) InsertIfAbsent(ctx context.Context, e *domain.SwapEvent) (bool, error) {
	if e == nil || e.Signature == "" {
		return false, storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, e.Signature, e.Timestamp)
	if err != nil {
		return false, fmt.Errorf("check swap event exists: %w", err)
	}
	if exists {
		return false, nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO swap_events (
			pair, pubkey, price, market_cap, base_amount, quote_amount,
			swap_amount, owner, signers, is_buy, is_pump, price_stale,
			slot, signature, timestamp
		)
	`)
	if err != nil {
		return false, fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.Pair, e.Pubkey, e.Price, e.MarketCap, e.BaseAmount, e.QuoteAmount,
		e.SwapAmount, e.Owner, e.Signers, boolToUInt8(e.IsBuy), boolToUInt8(e.IsPump),
		boolToUInt8(e.PriceStale), e.Slot, e.Signature, e.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return false, fmt.Errorf("send batch: %w", err)
	}

	return true, nil
}

// Query retrieves events for (pair, pubkey) with timestamp in [start, end),
// in the canonical (timestamp, slot, signature) order.
func (s *SwapEventStore) Query(ctx context.Context, pair, pubkey string, start, end int64) ([]*domain.SwapEvent, error) {
	query := `
		SELECT pair, pubkey, price, market_cap, base_amount, quote_amount,
		       swap_amount, owner, signers, is_buy, is_pump, price_stale,
		       slot, signature, timestamp
		FROM swap_events FINAL
		WHERE pair = ? AND pubkey = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC, slot ASC, signature ASC
	`

	rows, err := s.conn.Query(ctx, query, pair, pubkey, start, end)
	if err != nil {
		return nil, fmt.Errorf("query swap events: %w", err)
	}
	defer rows.Close()

	return scanSwapEvents(rows)
}

// exists checks if an event with the given key was already committed.
func (s *SwapEventStore) exists(ctx context.Context, signature string, timestamp int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM swap_events
		WHERE signature = ? AND timestamp = ?
	`, signature, timestamp).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanSwapEvents scans multiple rows into a slice of SwapEvent.
func scanSwapEvents(rows chRows) ([]*domain.SwapEvent, error) {
	var events []*domain.SwapEvent

	for rows.Next() {
		var e domain.SwapEvent
		var isBuy, isPump, priceStale uint8

		err := rows.Scan(
			&e.Pair, &e.Pubkey, &e.Price, &e.MarketCap, &e.BaseAmount,
			&e.QuoteAmount, &e.SwapAmount, &e.Owner, &e.Signers,
			&isBuy, &isPump, &priceStale, &e.Slot, &e.Signature, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap event row: %w", err)
		}

		e.IsBuy = isBuy != 0
		e.IsPump = isPump != 0
		e.PriceStale = priceStale != 0
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap event rows: %w", err)
	}

	return events, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
