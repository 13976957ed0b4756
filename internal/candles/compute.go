// Package candles aggregates committed swap events into OHLCV
// candlesticks. Recomputation is fully re-derived from the fact store, so
// a pass is idempotent and self-healing.
package candles

import (
	"sonar/internal/domain"
)

// Compute folds one bucket's events into a candlestick. Returns false when
// the bucket is empty. The result depends only on the multiset of events:
// the slice is reordered into the domain total order before folding, so
// input order never changes the output.
//
// Tie-breaks: open takes the event with minimum (timestamp, slot,
// signature); close takes the maximum. High/low need no tie-break.
func Compute(pair, pubkey string, interval domain.Interval, bucketStart int64, events []*domain.SwapEvent) (*domain.Candlestick, bool) {
	if len(events) == 0 {
		return nil, false
	}

	domain.SortEvents(events)

	first := events[0]
	last := events[len(events)-1]

	c := &domain.Candlestick{
		Pair:      pair,
		Pubkey:    pubkey,
		Interval:  interval,
		Timestamp: bucketStart,
		Open:      first.Price,
		High:      first.Price,
		Low:       first.Price,
		Close:     last.Price,
		MarketCap: last.MarketCap,
	}

	for _, e := range events {
		if e.Price > c.High {
			c.High = e.Price
		}
		if e.Price < c.Low {
			c.Low = e.Price
		}
		c.Volume += e.BaseAmount
		c.Turnover += e.SwapAmount
	}

	return c, true
}
