package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sonar/internal/domain"
	"sonar/internal/storage"
)

// CandlestickStore implements storage.CandlestickStore using PostgreSQL.
// Upserts replace the whole row, so a recomputed bucket fully supersedes
// the previous aggregation.
type CandlestickStore struct {
	pool *Pool
}

// NewCandlestickStore creates a new CandlestickStore.
func NewCandlestickStore(pool *Pool) *CandlestickStore {
	return &CandlestickStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandlestickStore = (*CandlestickStore)(nil)

// Upsert writes the candlestick, replacing any prior row for its key.
func (s *CandlestickStore) Upsert(ctx context.Context, c *domain.Candlestick) error {
	if c == nil || !c.Interval.Valid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO candlesticks (
			pair, pubkey, interval_seconds, timestamp,
			open, high, low, close, volume, turnover, market_cap
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (pair, pubkey, interval_seconds, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			turnover = EXCLUDED.turnover,
			market_cap = EXCLUDED.market_cap
	`

	_, err := s.pool.Exec(ctx, query,
		c.Pair,
		c.Pubkey,
		c.Interval.Seconds(),
		c.Timestamp,
		c.Open,
		c.High,
		c.Low,
		c.Close,
		c.Volume,
		c.Turnover,
		c.MarketCap,
	)
	if err != nil {
		return fmt.Errorf("upsert candlestick: %w", err)
	}
	return nil
}

// GetByKey retrieves a single candlestick.
func (s *CandlestickStore) GetByKey(ctx context.Context, pair, pubkey string, interval domain.Interval, timestamp int64) (*domain.Candlestick, error) {
	query := `
		SELECT pair, pubkey, interval_seconds, timestamp,
		       open, high, low, close, volume, turnover, market_cap
		FROM candlesticks
		WHERE pair = $1 AND pubkey = $2 AND interval_seconds = $3 AND timestamp = $4
	`

	row := s.pool.QueryRow(ctx, query, pair, pubkey, interval.Seconds(), timestamp)
	c, err := scanCandlestick(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get candlestick: %w", err)
	}
	return c, nil
}

// GetRange retrieves candlesticks with bucket start in [start, end),
// ordered by timestamp ASC.
func (s *CandlestickStore) GetRange(ctx context.Context, pair, pubkey string, interval domain.Interval, start, end int64) ([]*domain.Candlestick, error) {
	query := `
		SELECT pair, pubkey, interval_seconds, timestamp,
		       open, high, low, close, volume, turnover, market_cap
		FROM candlesticks
		WHERE pair = $1 AND pubkey = $2 AND interval_seconds = $3
		  AND timestamp >= $4 AND timestamp < $5
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, pair, pubkey, interval.Seconds(), start, end)
	if err != nil {
		return nil, fmt.Errorf("query candlesticks: %w", err)
	}
	defer rows.Close()

	var result []*domain.Candlestick
	for rows.Next() {
		c, err := scanCandlestick(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candlestick row: %w", err)
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candlestick rows: %w", err)
	}

	return result, nil
}

// scanCandlestick scans one row into a Candlestick.
func scanCandlestick(row pgx.Row) (*domain.Candlestick, error) {
	var c domain.Candlestick
	var intervalSeconds int64

	err := row.Scan(
		&c.Pair,
		&c.Pubkey,
		&intervalSeconds,
		&c.Timestamp,
		&c.Open,
		&c.High,
		&c.Low,
		&c.Close,
		&c.Volume,
		&c.Turnover,
		&c.MarketCap,
	)
	if err != nil {
		return nil, err
	}

	c.Interval = domain.Interval(intervalSeconds)
	return &c, nil
}
