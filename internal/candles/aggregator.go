package candles

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"sonar/internal/domain"
	"sonar/internal/observability"
	"sonar/internal/storage"
)

// Key identifies one aggregation series.
type Key struct {
	Pair   string
	Pubkey string
}

// Options tunes the aggregator schedule.
type Options struct {
	// Intervals to maintain. Defaults to 1m, 5m, 1h, 1d.
	Intervals []domain.Interval
	// Tick is the recomputation cadence. Defaults to the smallest
	// interval.
	Tick time.Duration
	// Grace is the look-back window absorbing late-arriving swaps whose
	// block time lands in an already-finalized bucket.
	Grace time.Duration
}

// DefaultOptions returns the default aggregation tuning.
func DefaultOptions() Options {
	return Options{
		Intervals: []domain.Interval{domain.Interval1m, domain.Interval5m, domain.Interval1h, domain.Interval1d},
		Grace:     2 * time.Minute,
	}
}

// Aggregator recomputes candlesticks for tracked keys on a fixed schedule.
// It only reads the fact store and writes the candlestick store; the
// ingestion path is never touched.
type Aggregator struct {
	events  storage.SwapEventStore
	candles storage.CandlestickStore
	metrics *observability.Metrics
	opts    Options
	logger  *log.Logger

	mu      sync.Mutex
	tracked map[Key]struct{}
	lastRun map[seriesKey]int64

	// locks enforces at most one in-flight pass per series so two
	// concurrent passes cannot interleave reads into a stale write.
	locks sync.Map // seriesKey -> *sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

type seriesKey struct {
	Key
	Interval domain.Interval
}

// NewAggregator creates an aggregator over the given stores. metrics may
// be nil.
func NewAggregator(events storage.SwapEventStore, candles storage.CandlestickStore, metrics *observability.Metrics, opts Options, logger *log.Logger) *Aggregator {
	if len(opts.Intervals) == 0 {
		opts.Intervals = DefaultOptions().Intervals
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Duration(opts.Intervals[0].Seconds()) * time.Second
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultOptions().Grace
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		events:  events,
		candles: candles,
		metrics: metrics,
		opts:    opts,
		logger:  logger,
		tracked: make(map[Key]struct{}),
		lastRun: make(map[seriesKey]int64),
		now:     time.Now,
	}
}

// Track registers a (pair, pubkey) series for aggregation. Safe to call
// from ingestion workers; repeat calls are cheap.
func (a *Aggregator) Track(pair, pubkey string) {
	a.mu.Lock()
	a.tracked[Key{Pair: pair, Pubkey: pubkey}] = struct{}{}
	a.mu.Unlock()
}

// Keys returns the tracked series.
func (a *Aggregator) Keys() []Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]Key, 0, len(a.tracked))
	for k := range a.tracked {
		keys = append(keys, k)
	}
	return keys
}

// Run executes aggregation passes on the configured tick until the
// context is cancelled. The pass in flight when cancellation arrives is
// finished; per-bucket writes are atomic upserts, so no partial rows are
// left behind.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}

// RunOnce recomputes all buckets needing attention for every tracked
// series. A failure in one series is logged and does not block the rest;
// the failed series is naturally retried next pass because its last-run
// watermark does not advance.
func (a *Aggregator) RunOnce(ctx context.Context) {
	if a.metrics != nil {
		a.metrics.AggregationRuns.Inc()
	}
	now := a.now().Unix()
	for _, key := range a.Keys() {
		for _, interval := range a.opts.Intervals {
			if err := a.aggregateSeries(ctx, key, interval, now); err != nil {
				if a.metrics != nil {
					a.metrics.AggregationFailures.Inc()
				}
				a.logger.Printf("aggregate %s/%s %s: %v", key.Pair, key.Pubkey, interval, err)
			}
		}
	}
}

// aggregateSeries recomputes the buckets of one series whose end time
// falls inside (lastRun - grace, now]. The bucket still accumulating
// (end time in the future) is skipped; it is picked up once it has fully
// elapsed.
func (a *Aggregator) aggregateSeries(ctx context.Context, key Key, interval domain.Interval, now int64) error {
	sk := seriesKey{Key: key, Interval: interval}

	muAny, _ := a.locks.LoadOrStore(sk, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	if !mu.TryLock() {
		// Another pass is already in flight for this series.
		return nil
	}
	defer mu.Unlock()

	a.mu.Lock()
	last := a.lastRun[sk]
	a.mu.Unlock()
	if last == 0 {
		// Cold start: look back one grace window, not the whole store.
		last = now
	}

	grace := int64(a.opts.Grace / time.Second)
	iv := interval.Seconds()

	// Earliest bucket whose end lies after the watermark minus grace.
	from := interval.Truncate(last - grace - iv)
	if from < 0 {
		from = 0
	}

	for start := from; start+iv <= now; start += iv {
		if start+iv <= last-grace {
			// Finalized before the grace window: exempt from
			// recomputation.
			continue
		}
		if err := a.aggregateBucket(ctx, key, interval, start); err != nil {
			return fmt.Errorf("bucket %d: %w", start, err)
		}
	}

	a.mu.Lock()
	a.lastRun[sk] = now
	a.mu.Unlock()
	return nil
}

// aggregateBucket recomputes one bucket from the fact store and replaces
// the stored row. Running it twice on unchanged input writes an identical
// row.
func (a *Aggregator) aggregateBucket(ctx context.Context, key Key, interval domain.Interval, start int64) error {
	events, err := a.events.Query(ctx, key.Pair, key.Pubkey, start, start+interval.Seconds())
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}

	c, ok := Compute(key.Pair, key.Pubkey, interval, start, events)
	if !ok {
		// Empty bucket: nothing to replace. Gaps appear as missing
		// candles, never as zero rows.
		return nil
	}

	if err := a.candles.Upsert(ctx, c); err != nil {
		return fmt.Errorf("upsert candle: %w", err)
	}
	if a.metrics != nil {
		a.metrics.CandlesWritten.Inc()
	}
	return nil
}
