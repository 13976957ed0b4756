package candles

import (
	"math/rand"
	"testing"

	"sonar/internal/domain"
)

func bucketEvents() []*domain.SwapEvent {
	return []*domain.SwapEvent{
		{Pair: "SOL/USDC", Pubkey: "TOKEN1", Price: 12, BaseAmount: 3, SwapAmount: 36, MarketCap: 1200, Slot: 10, Signature: "sigB", Timestamp: 130},
		{Pair: "SOL/USDC", Pubkey: "TOKEN1", Price: 11, BaseAmount: 4, SwapAmount: 44, MarketCap: 1100, Slot: 20, Signature: "sigC", Timestamp: 170},
	}
}

func TestCompute_EmptyBucket(t *testing.T) {
	_, ok := Compute("p", "t", domain.Interval1m, 120, nil)
	if ok {
		t.Error("empty bucket must not produce a candle")
	}
}

func TestCompute_ScenarioBucket(t *testing.T) {
	// Swaps at 100/130/170 with prices 10/12/11; the [120,180) 1m bucket
	// holds the 130 and 170 events.
	c, ok := Compute("SOL/USDC", "TOKEN1", domain.Interval1m, 120, bucketEvents())
	if !ok {
		t.Fatal("expected a candle")
	}

	if c.Open != 12 {
		t.Errorf("open: got %f, want 12 (event at ts 130)", c.Open)
	}
	if c.High != 12 {
		t.Errorf("high: got %f, want 12", c.High)
	}
	if c.Low != 11 {
		t.Errorf("low: got %f, want 11", c.Low)
	}
	if c.Close != 11 {
		t.Errorf("close: got %f, want 11 (event at ts 170)", c.Close)
	}
	if c.Volume != 7 {
		t.Errorf("volume: got %f, want 7", c.Volume)
	}
	if c.Turnover != 80 {
		t.Errorf("turnover: got %f, want 80", c.Turnover)
	}
	if c.MarketCap != 1100 {
		t.Errorf("market cap: got %f, want close event's 1100", c.MarketCap)
	}
	if c.Timestamp != 120 {
		t.Errorf("timestamp: got %d, want bucket start 120", c.Timestamp)
	}
}

func TestCompute_DeterministicUnderShuffle(t *testing.T) {
	base := []*domain.SwapEvent{
		{Price: 10, BaseAmount: 1, SwapAmount: 10, Slot: 1, Signature: "a", Timestamp: 120},
		{Price: 15, BaseAmount: 2, SwapAmount: 30, Slot: 2, Signature: "b", Timestamp: 125},
		{Price: 9, BaseAmount: 3, SwapAmount: 27, Slot: 3, Signature: "c", Timestamp: 150},
		{Price: 13, BaseAmount: 4, SwapAmount: 52, Slot: 4, Signature: "d", Timestamp: 175},
	}

	want, ok := Compute("p", "t", domain.Interval1m, 120, append([]*domain.SwapEvent(nil), base...))
	if !ok {
		t.Fatal("expected a candle")
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]*domain.SwapEvent(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, ok := Compute("p", "t", domain.Interval1m, 120, shuffled)
		if !ok {
			t.Fatal("expected a candle")
		}
		if *got != *want {
			t.Fatalf("shuffle %d changed the candle: got %+v, want %+v", i, got, want)
		}
	}
}

func TestCompute_SlotTieBreakForOpen(t *testing.T) {
	events := []*domain.SwapEvent{
		{Price: 20, Slot: 7, Signature: "x", Timestamp: 120},
		{Price: 10, Slot: 3, Signature: "y", Timestamp: 120},
	}

	c, ok := Compute("p", "t", domain.Interval1m, 120, events)
	if !ok {
		t.Fatal("expected a candle")
	}
	if c.Open != 10 {
		t.Errorf("open must come from the lower slot: got %f, want 10", c.Open)
	}
	if c.Close != 20 {
		t.Errorf("close must come from the higher slot: got %f, want 20", c.Close)
	}
}

func TestCompute_SignatureTieBreak(t *testing.T) {
	events := []*domain.SwapEvent{
		{Price: 5, Slot: 1, Signature: "bbb", Timestamp: 120},
		{Price: 8, Slot: 1, Signature: "aaa", Timestamp: 120},
	}

	c, ok := Compute("p", "t", domain.Interval1m, 120, events)
	if !ok {
		t.Fatal("expected a candle")
	}
	if c.Open != 8 {
		t.Errorf("open must come from the lexically smaller signature: got %f", c.Open)
	}
	if c.Close != 5 {
		t.Errorf("close must come from the lexically larger signature: got %f", c.Close)
	}
}

func TestCompute_SingleEvent(t *testing.T) {
	events := []*domain.SwapEvent{
		{Price: 42, BaseAmount: 1, SwapAmount: 42, MarketCap: 99, Slot: 1, Signature: "s", Timestamp: 130},
	}

	c, ok := Compute("p", "t", domain.Interval1m, 120, events)
	if !ok {
		t.Fatal("expected a candle")
	}
	if c.Open != 42 || c.High != 42 || c.Low != 42 || c.Close != 42 {
		t.Errorf("single-event candle must be flat: %+v", c)
	}
	if c.MarketCap != 99 {
		t.Errorf("market cap: got %f, want 99", c.MarketCap)
	}
}
