// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Source metrics
	UpdatesReceived prometheus.Counter
	UpdatesDropped  prometheus.Counter
	HighestSlotSeen prometheus.Gauge

	// Decode metrics
	SwapsDecoded prometheus.Counter
	DecodeMisses *prometheus.CounterVec

	// Commit metrics
	SwapsCommitted    prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	SwapsFiltered     *prometheus.CounterVec
	CommitRetries     prometheus.Counter
	CommitFailures    prometheus.Counter

	// Fanout metrics
	TradesPublished prometheus.Counter
	TradesDropped   prometheus.Counter

	// Aggregation metrics
	AggregationRuns     prometheus.Counter
	AggregationFailures prometheus.Counter
	CandlesWritten      prometheus.Counter

	// Pipeline metrics
	QueueDepth    prometheus.Gauge
	StageLatency  *prometheus.HistogramVec
	CommitLatency prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered
// on the given registerer. Passing nil uses the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "sonar"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		UpdatesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "updates_received_total",
			Help:      "Total number of raw updates received from the source",
		}),
		UpdatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "updates_dropped_total",
			Help:      "Total number of raw updates dropped because the work queue was full",
		}),
		HighestSlotSeen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "highest_slot_seen",
			Help:      "Highest slot number seen across received updates",
		}),

		SwapsDecoded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "swaps_decoded_total",
			Help:      "Total number of raw updates decoded into swaps",
		}),
		DecodeMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "misses_total",
			Help:      "Total number of raw updates not decoded, by reason",
		}, []string{"reason"}),

		SwapsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commit",
			Name:      "swaps_committed_total",
			Help:      "Total number of swap events persisted for the first time",
		}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commit",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of swap events skipped as already persisted",
		}),
		SwapsFiltered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commit",
			Name:      "swaps_filtered_total",
			Help:      "Total number of swap events filtered before persistence, by reason",
		}, []string{"reason"}),
		CommitRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commit",
			Name:      "retries_total",
			Help:      "Total number of storage insert retries after transient errors",
		}),
		CommitFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commit",
			Name:      "failures_total",
			Help:      "Total number of swap events dropped after retry exhaustion",
		}),

		TradesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "trades_published_total",
			Help:      "Total number of trades fanned out to subscribers",
		}),
		TradesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "trades_dropped_total",
			Help:      "Total number of trades dropped for slow subscribers",
		}),

		AggregationRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "runs_total",
			Help:      "Total number of aggregation passes executed",
		}),
		AggregationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "failures_total",
			Help:      "Total number of series passes that failed",
		}),
		CandlesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "candles_written_total",
			Help:      "Total number of candlesticks upserted",
		}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_depth",
			Help:      "Current number of raw updates waiting in the work queue",
		}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_latency_seconds",
			Help:      "Per-stage processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		CommitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "commit",
			Name:      "latency_seconds",
			Help:      "End-to-end commit latency in seconds including retries",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
