package domain

import (
	"fmt"
	"sort"
)

// Candlestick is the OHLCV aggregate for one time bucket of one
// (pair, pubkey, interval) key. Rows are replaced wholesale on
// recomputation, never merged.
type Candlestick struct {
	Pair      string
	Pubkey    string
	Interval  Interval
	Timestamp int64 // bucket start, seconds
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64 // sum of base_amount
	Turnover  float64 // sum of swap_amount
	MarketCap float64 // market_cap of the close-selected event
}

// Interval is a candlestick bucket width.
type Interval int64

// Supported candlestick intervals.
const (
	Interval1s  Interval = 1
	Interval5s  Interval = 5
	Interval15s Interval = 15
	Interval30s Interval = 30
	Interval1m  Interval = 60
	Interval5m  Interval = 300
	Interval15m Interval = 900
	Interval30m Interval = 1800
	Interval1h  Interval = 3600
	Interval4h  Interval = 14400
	Interval1d  Interval = 86400
)

var intervalNames = map[Interval]string{
	Interval1s:  "1s",
	Interval5s:  "5s",
	Interval15s: "15s",
	Interval30s: "30s",
	Interval1m:  "1m",
	Interval5m:  "5m",
	Interval15m: "15m",
	Interval30m: "30m",
	Interval1h:  "1h",
	Interval4h:  "4h",
	Interval1d:  "1d",
}

// Seconds returns the bucket width in seconds.
func (i Interval) Seconds() int64 { return int64(i) }

// Truncate returns the start of the bucket containing ts.
func (i Interval) Truncate(ts int64) int64 {
	return ts / int64(i) * int64(i)
}

// Valid reports whether the interval is one of the supported widths.
func (i Interval) Valid() bool {
	_, ok := intervalNames[i]
	return ok
}

func (i Interval) String() string {
	if name, ok := intervalNames[i]; ok {
		return name
	}
	return fmt.Sprintf("%ds", int64(i))
}

// ParseInterval converts a short interval name ("1m", "1h", ...) into an
// Interval.
func ParseInterval(s string) (Interval, error) {
	for iv, name := range intervalNames {
		if name == s {
			return iv, nil
		}
	}
	return 0, fmt.Errorf("unknown interval %q", s)
}

// Intervals returns all supported intervals in ascending width order.
func Intervals() []Interval {
	out := make([]Interval, 0, len(intervalNames))
	for iv := range intervalNames {
		out = append(out, iv)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
