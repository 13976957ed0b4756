package writer

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"sonar/internal/domain"
	"sonar/internal/storage"
	"sonar/internal/storage/memory"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []*domain.SwapEvent
}

func (p *capturePublisher) Publish(e *domain.SwapEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// flakyStore fails the first n InsertIfAbsent calls with a transient error.
type flakyStore struct {
	inner    *memory.SwapEventStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) InsertIfAbsent(ctx context.Context, e *domain.SwapEvent) (bool, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return false, storage.ErrUnavailable
	}
	return s.inner.InsertIfAbsent(ctx, e)
}

func (s *flakyStore) Query(ctx context.Context, pair, pubkey string, start, end int64) ([]*domain.SwapEvent, error) {
	return s.inner.Query(ctx, pair, pubkey, start, end)
}

func testEvent(sig string) *domain.SwapEvent {
	return &domain.SwapEvent{
		Pair: "SOL/USDC", Pubkey: "TOKEN1",
		Price: 10, BaseAmount: 2, QuoteAmount: 20, SwapAmount: 20,
		Signature: sig, Slot: 100, Timestamp: 1000,
	}
}

func fastOptions() Options {
	return Options{
		MaxAttempts:   3,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 2 * time.Millisecond,
		MinSwapAmount: 0.1,
	}
}

func quietLogger() *log.Logger {
	return log.New(discard{}, "", 0)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestWriter_FirstCommitPublishes(t *testing.T) {
	store := memory.NewSwapEventStore()
	pub := &capturePublisher{}
	w := NewWriter(store, pub, fastOptions(), quietLogger())

	result, err := w.Commit(context.Background(), testEvent("sig1"))
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if result != Committed {
		t.Errorf("got result %v, want Committed", result)
	}
	if pub.count() != 1 {
		t.Errorf("expected 1 publish, got %d", pub.count())
	}
}

func TestWriter_DuplicateIsNoOpAndNotRepublished(t *testing.T) {
	store := memory.NewSwapEventStore()
	pub := &capturePublisher{}
	w := NewWriter(store, pub, fastOptions(), quietLogger())
	ctx := context.Background()

	if _, err := w.Commit(ctx, testEvent("sig1")); err != nil {
		t.Fatal(err)
	}
	result, err := w.Commit(ctx, testEvent("sig1"))
	if err != nil {
		t.Fatalf("duplicate commit errored: %v", err)
	}
	if result != Duplicate {
		t.Errorf("got result %v, want Duplicate", result)
	}
	if pub.count() != 1 {
		t.Errorf("duplicate commit re-published: %d publishes", pub.count())
	}
	if store.Len() != 1 {
		t.Errorf("expected exactly one row, got %d", store.Len())
	}
}

func TestWriter_TransientErrorRetried(t *testing.T) {
	store := &flakyStore{inner: memory.NewSwapEventStore(), failures: 2}
	pub := &capturePublisher{}
	w := NewWriter(store, pub, fastOptions(), quietLogger())

	result, err := w.Commit(context.Background(), testEvent("sig1"))
	if err != nil {
		t.Fatalf("Commit should succeed after retries: %v", err)
	}
	if result != Committed {
		t.Errorf("got result %v, want Committed", result)
	}
	if store.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", store.calls)
	}
}

func TestWriter_RetryHookFiresPerRetry(t *testing.T) {
	store := &flakyStore{inner: memory.NewSwapEventStore(), failures: 2}
	w := NewWriter(store, nil, fastOptions(), quietLogger())

	retries := 0
	w.OnRetry(func() { retries++ })

	if _, err := w.Commit(context.Background(), testEvent("sig1")); err != nil {
		t.Fatalf("Commit should succeed after retries: %v", err)
	}
	if retries != 2 {
		t.Errorf("retry hook: got %d calls, want 2", retries)
	}

	// Exhaustion: the final failed attempt is not a scheduled retry.
	store = &flakyStore{inner: memory.NewSwapEventStore(), failures: 100}
	w = NewWriter(store, nil, fastOptions(), quietLogger())
	retries = 0
	w.OnRetry(func() { retries++ })

	if _, err := w.Commit(context.Background(), testEvent("sig2")); !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if retries != 2 {
		t.Errorf("retry hook: got %d calls, want 2", retries)
	}
}

func TestWriter_RetriesExhausted(t *testing.T) {
	store := &flakyStore{inner: memory.NewSwapEventStore(), failures: 100}
	pub := &capturePublisher{}
	w := NewWriter(store, pub, fastOptions(), quietLogger())

	_, err := w.Commit(context.Background(), testEvent("sig1"))
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("expected ErrRetriesExhausted, got %v", err)
	}
	if pub.count() != 0 {
		t.Error("failed commit must not publish")
	}
}

func TestWriter_DustSwapSkipped(t *testing.T) {
	store := memory.NewSwapEventStore()
	pub := &capturePublisher{}
	w := NewWriter(store, pub, fastOptions(), quietLogger())

	dust := testEvent("sig1")
	dust.SwapAmount = 0.01

	result, err := w.Commit(context.Background(), dust)
	if err != nil {
		t.Fatal(err)
	}
	if result != Skipped {
		t.Errorf("got result %v, want Skipped", result)
	}
	if store.Len() != 0 {
		t.Error("dust swap reached the store")
	}
}

func TestWriter_ZeroLegSkipped(t *testing.T) {
	store := memory.NewSwapEventStore()
	w := NewWriter(store, nil, fastOptions(), quietLogger())

	zero := testEvent("sig1")
	zero.QuoteAmount = 0

	result, err := w.Commit(context.Background(), zero)
	if err != nil {
		t.Fatal(err)
	}
	if result != Skipped {
		t.Errorf("got result %v, want Skipped", result)
	}
}

func TestWriter_StalePricedDustStillCommitted(t *testing.T) {
	// A stale valuation makes the USD notional unreliable, so the dust
	// filter must not apply.
	store := memory.NewSwapEventStore()
	w := NewWriter(store, nil, fastOptions(), quietLogger())

	e := testEvent("sig1")
	e.PriceStale = true
	e.SwapAmount = 0

	result, err := w.Commit(context.Background(), e)
	if err != nil {
		t.Fatal(err)
	}
	if result != Committed {
		t.Errorf("got result %v, want Committed", result)
	}
}

func TestWriter_ConcurrentSameKeySingleRow(t *testing.T) {
	store := memory.NewSwapEventStore()
	pub := &capturePublisher{}
	w := NewWriter(store, pub, fastOptions(), quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = w.Commit(context.Background(), testEvent("sig1"))
		}()
	}
	wg.Wait()

	if store.Len() != 1 {
		t.Errorf("expected one row after racing commits, got %d", store.Len())
	}
	if pub.count() != 1 {
		t.Errorf("expected one publish after racing commits, got %d", pub.count())
	}
}
