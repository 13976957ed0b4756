package domain

import "testing"

func TestCompareEvents_TotalOrder(t *testing.T) {
	a := &SwapEvent{Timestamp: 100, Slot: 5, Signature: "sigA"}
	b := &SwapEvent{Timestamp: 100, Slot: 6, Signature: "sigB"}
	c := &SwapEvent{Timestamp: 101, Slot: 1, Signature: "sigC"}

	if CompareEvents(a, b) >= 0 {
		t.Error("lower slot should order first at equal timestamp")
	}
	if CompareEvents(b, c) >= 0 {
		t.Error("lower timestamp should order first regardless of slot")
	}
	if CompareEvents(a, a) != 0 {
		t.Error("equal events should compare equal")
	}
}

func TestCompareEvents_SignatureTieBreak(t *testing.T) {
	a := &SwapEvent{Timestamp: 100, Slot: 5, Signature: "aaa"}
	b := &SwapEvent{Timestamp: 100, Slot: 5, Signature: "bbb"}

	if CompareEvents(a, b) >= 0 {
		t.Error("signature lexical order should break (timestamp, slot) ties")
	}
}

func TestSortEvents_Deterministic(t *testing.T) {
	mk := func() []*SwapEvent {
		return []*SwapEvent{
			{Timestamp: 130, Slot: 2, Signature: "s2"},
			{Timestamp: 100, Slot: 9, Signature: "s9"},
			{Timestamp: 130, Slot: 2, Signature: "s1"},
			{Timestamp: 100, Slot: 3, Signature: "s3"},
		}
	}

	events := mk()
	SortEvents(events)

	want := []string{"s3", "s9", "s1", "s2"}
	for i, sig := range want {
		if events[i].Signature != sig {
			t.Fatalf("position %d: got %s, want %s", i, events[i].Signature, sig)
		}
	}

	// Re-sorting an already sorted slice must be a no-op.
	SortEvents(events)
	for i, sig := range want {
		if events[i].Signature != sig {
			t.Fatalf("re-sort changed order at %d: got %s, want %s", i, events[i].Signature, sig)
		}
	}
}

func TestInterval_Truncate(t *testing.T) {
	if got := Interval1m.Truncate(130); got != 120 {
		t.Errorf("Truncate(130) = %d, want 120", got)
	}
	if got := Interval1m.Truncate(120); got != 120 {
		t.Errorf("Truncate(120) = %d, want 120", got)
	}
	if got := Interval1h.Truncate(7199); got != 3600 {
		t.Errorf("Truncate(7199) = %d, want 3600", got)
	}
}

func TestParseInterval(t *testing.T) {
	iv, err := ParseInterval("5m")
	if err != nil {
		t.Fatalf("ParseInterval failed: %v", err)
	}
	if iv != Interval5m {
		t.Errorf("got %v, want 5m", iv)
	}

	if _, err := ParseInterval("7m"); err == nil {
		t.Error("expected error for unsupported interval")
	}
}
