package clickhouse

import (
	"context"
	"fmt"
	"time"

	"sonar/internal/domain"
	"sonar/internal/storage"
)

// CandlestickStore implements storage.CandlestickStore using ClickHouse.
// ReplacingMergeTree with a version column gives replace-on-conflict:
// the newest insert for a key wins, reads collapse older rows via FINAL.
type CandlestickStore struct {
	conn *Conn
}

// NewCandlestickStore creates a new CandlestickStore.
func NewCandlestickStore(conn *Conn) *CandlestickStore {
	return &CandlestickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandlestickStore = (*CandlestickStore)(nil)

// Upsert writes the candlestick, superseding any prior row for its key.
func (s *CandlestickStore) Upsert(ctx context.Context, c *domain.Candlestick) error {
	if c == nil || !c.Interval.Valid() {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candlesticks (
			pair, pubkey, interval_seconds, timestamp,
			open, high, low, close, volume, turnover, market_cap, version
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		c.Pair, c.Pubkey, c.Interval.Seconds(), c.Timestamp,
		c.Open, c.High, c.Low, c.Close, c.Volume, c.Turnover, c.MarketCap,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByKey retrieves a single candlestick.
func (s *CandlestickStore) GetByKey(ctx context.Context, pair, pubkey string, interval domain.Interval, timestamp int64) (*domain.Candlestick, error) {
	query := `
		SELECT pair, pubkey, interval_seconds, timestamp,
		       open, high, low, close, volume, turnover, market_cap
		FROM candlesticks FINAL
		WHERE pair = ? AND pubkey = ? AND interval_seconds = ? AND timestamp = ?
	`

	rows, err := s.conn.Query(ctx, query, pair, pubkey, interval.Seconds(), timestamp)
	if err != nil {
		return nil, fmt.Errorf("get candlestick: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandlesticks(rows)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, storage.ErrNotFound
	}
	return candles[0], nil
}

// GetRange retrieves candlesticks with bucket start in [start, end),
// ordered by timestamp ASC.
func (s *CandlestickStore) GetRange(ctx context.Context, pair, pubkey string, interval domain.Interval, start, end int64) ([]*domain.Candlestick, error) {
	query := `
		SELECT pair, pubkey, interval_seconds, timestamp,
		       open, high, low, close, volume, turnover, market_cap
		FROM candlesticks FINAL
		WHERE pair = ? AND pubkey = ? AND interval_seconds = ?
		  AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, pair, pubkey, interval.Seconds(), start, end)
	if err != nil {
		return nil, fmt.Errorf("query candlesticks: %w", err)
	}
	defer rows.Close()

	return scanCandlesticks(rows)
}

// scanCandlesticks scans multiple rows into a slice of Candlestick.
func scanCandlesticks(rows chRows) ([]*domain.Candlestick, error) {
	var candles []*domain.Candlestick

	for rows.Next() {
		var c domain.Candlestick
		var intervalSeconds int64

		err := rows.Scan(
			&c.Pair, &c.Pubkey, &intervalSeconds, &c.Timestamp,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Turnover, &c.MarketCap,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candlestick row: %w", err)
		}

		c.Interval = domain.Interval(intervalSeconds)
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candlestick rows: %w", err)
	}

	return candles, nil
}
