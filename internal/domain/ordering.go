package domain

import "sort"

// CompareEvents defines the deterministic total order over swap events:
// (timestamp ASC, slot ASC, signature ASC). Aggregation depends on this
// order being total so recomputation is bit-reproducible.
func CompareEvents(a, b *SwapEvent) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	if a.Slot != b.Slot {
		if a.Slot < b.Slot {
			return -1
		}
		return 1
	}
	if a.Signature != b.Signature {
		if a.Signature < b.Signature {
			return -1
		}
		return 1
	}
	return 0
}

// SortEvents orders events by CompareEvents.
func SortEvents(events []*SwapEvent) {
	sort.Slice(events, func(i, j int) bool {
		return CompareEvents(events[i], events[j]) < 0
	})
}
