// Package writer commits swap events to the fact store idempotently and
// hands first-time commits to fanout.
package writer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sonar/internal/domain"
	"sonar/internal/fanout"
	"sonar/internal/storage"
)

// ErrRetriesExhausted is returned when a transient storage failure
// persists past the attempt budget. The event is dropped; the pipeline
// continues.
var ErrRetriesExhausted = errors.New("commit retries exhausted")

// Options tunes commit retry behavior.
type Options struct {
	// MaxAttempts bounds commit attempts per event, first try included.
	MaxAttempts int `envconfig:"COMMIT_MAX_ATTEMPTS" default:"5"`
	// RetryDelay is the initial backoff; it doubles per attempt.
	RetryDelay time.Duration `envconfig:"COMMIT_RETRY_DELAY" default:"100ms"`
	// MaxRetryDelay caps the backoff.
	MaxRetryDelay time.Duration `envconfig:"COMMIT_MAX_RETRY_DELAY" default:"5s"`
	// MinSwapAmount drops dust swaps before they reach the store. USD.
	MinSwapAmount float64 `envconfig:"COMMIT_MIN_SWAP_AMOUNT" default:"0.1"`
}

// DefaultOptions returns the default writer tuning.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:   5,
		RetryDelay:    100 * time.Millisecond,
		MaxRetryDelay: 5 * time.Second,
		MinSwapAmount: 0.1,
	}
}

// Result describes the outcome of a commit.
type Result int

// Commit outcomes.
const (
	// Committed means a new row was inserted and the event published.
	Committed Result = iota
	// Duplicate means the row already existed; nothing was published.
	Duplicate
	// Skipped means the event was filtered before reaching the store.
	Skipped
)

// Writer performs idempotent commits. Safe for concurrent use; commits
// racing on the same (signature, timestamp) key resolve to a single
// logical write by the store's insert-if-absent discipline.
type Writer struct {
	store     storage.SwapEventStore
	publisher fanout.Publisher
	opts      Options
	logger    *log.Logger

	// onRetry is invoked once per scheduled storage retry. Optional.
	onRetry func()
}

// NewWriter creates a writer. publisher may be nil to disable fanout.
func NewWriter(store storage.SwapEventStore, publisher fanout.Publisher, opts Options, logger *log.Logger) *Writer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultOptions().RetryDelay
	}
	if opts.MaxRetryDelay < opts.RetryDelay {
		opts.MaxRetryDelay = opts.RetryDelay
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{store: store, publisher: publisher, opts: opts, logger: logger}
}

// OnRetry registers a callback fired for every scheduled retry. Must be
// set before the writer is shared.
func (w *Writer) OnRetry(fn func()) { w.onRetry = fn }

// Commit persists the event. Duplicates are a no-op success and are not
// re-published. Transient storage errors are retried with exponential
// backoff; exhaustion returns ErrRetriesExhausted without stopping the
// caller's processing of further events.
func (w *Writer) Commit(ctx context.Context, e *domain.SwapEvent) (Result, error) {
	if e == nil {
		return Skipped, storage.ErrInvalidInput
	}

	// Dust and degenerate swaps never reach the store.
	if e.BaseAmount == 0 || e.QuoteAmount == 0 {
		return Skipped, nil
	}
	if !e.PriceStale && e.SwapAmount < w.opts.MinSwapAmount {
		return Skipped, nil
	}

	delay := w.opts.RetryDelay
	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		inserted, err := w.store.InsertIfAbsent(ctx, e)
		if err == nil {
			if !inserted {
				return Duplicate, nil
			}
			if w.publisher != nil {
				w.publisher.Publish(e)
			}
			return Committed, nil
		}
		if !retryable(err) {
			return Skipped, fmt.Errorf("commit %s: %w", e.Signature, err)
		}

		lastErr = err
		w.logger.Printf("commit %s attempt %d/%d: %v", e.Signature, attempt, w.opts.MaxAttempts, err)

		if attempt == w.opts.MaxAttempts {
			break
		}
		if w.onRetry != nil {
			w.onRetry()
		}
		select {
		case <-ctx.Done():
			return Skipped, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > w.opts.MaxRetryDelay {
			delay = w.opts.MaxRetryDelay
		}
	}

	return Skipped, fmt.Errorf("%w: %s: %v", ErrRetriesExhausted, e.Signature, lastErr)
}

// retryable reports whether a storage error is worth another attempt.
func retryable(err error) bool {
	if errors.Is(err, storage.ErrInvalidInput) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
