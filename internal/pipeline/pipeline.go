// Package pipeline runs the ingestion path: raw updates are decoded,
// enriched with USD valuation, and committed through the idempotent
// writer by a pool of workers.
package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"sonar/internal/decoder"
	"sonar/internal/domain"
	"sonar/internal/enrich"
	"sonar/internal/observability"
	"sonar/internal/source"
	"sonar/internal/writer"
)

// Tracker learns about series that received new swaps. The aggregation
// scheduler implements it.
type Tracker interface {
	Track(pair, pubkey string)
}

// Options contains configuration for creating a Pipeline.
type Options struct {
	// Workers is the number of concurrent decode/enrich/commit workers.
	Workers int
	// Queue is the capacity of the raw-update work queue. When the queue
	// is full new updates are dropped and counted; ingestion never blocks
	// the source read loop.
	Queue int
	// DrainTimeout bounds how long shutdown waits for in-flight work.
	DrainTimeout time.Duration
}

// DefaultOptions returns the default pipeline tuning.
func DefaultOptions() Options {
	return Options{
		Workers:      4,
		Queue:        1024,
		DrainTimeout: 5 * time.Second,
	}
}

// Pipeline consumes an update source and drives the ingestion stages.
type Pipeline struct {
	source   source.UpdateSource
	registry *decoder.Registry
	enricher *enrich.Enricher
	writer   *writer.Writer
	tracker  Tracker
	metrics  *observability.Metrics
	opts     Options
	logger   *log.Logger

	queue chan *domain.RawUpdate
}

// NewPipeline creates a pipeline. tracker and metrics may be nil.
func NewPipeline(src source.UpdateSource, registry *decoder.Registry, enricher *enrich.Enricher, w *writer.Writer, tracker Tracker, metrics *observability.Metrics, opts Options, logger *log.Logger) *Pipeline {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Queue <= 0 {
		opts.Queue = def.Queue
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = def.DrainTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		source:   src,
		registry: registry,
		enricher: enricher,
		writer:   w,
		tracker:  tracker,
		metrics:  metrics,
		opts:     opts,
		logger:   logger,
		queue:    make(chan *domain.RawUpdate, opts.Queue),
	}
}

// Run consumes the source until the context is cancelled or the source
// channel closes, then drains in-flight work within the drain timeout.
// Returns nil on a clean source close, the context error on cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	// Workers run on their own context so cancellation does not abort
	// commits mid-retry; the drain timer cancels them if shutdown stalls.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range p.queue {
				p.process(workerCtx, u)
				if p.metrics != nil {
					p.metrics.QueueDepth.Set(float64(len(p.queue)))
				}
			}
		}()
	}

	p.logger.Printf("pipeline started, workers=%d queue=%d", p.opts.Workers, p.opts.Queue)

	var runErr error
feed:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break feed
		case u, ok := <-p.source.Updates():
			if !ok {
				break feed
			}
			p.receive(u)
		}
	}

	close(p.queue)
	drainTimer := time.AfterFunc(p.opts.DrainTimeout, cancelWorkers)
	wg.Wait()
	drainTimer.Stop()

	p.logger.Println("pipeline stopped")
	return runErr
}

// receive enqueues one update, dropping it when the queue is full.
func (p *Pipeline) receive(u *domain.RawUpdate) {
	if u == nil {
		return
	}
	if p.metrics != nil {
		p.metrics.UpdatesReceived.Inc()
		p.metrics.HighestSlotSeen.Set(float64(u.Slot))
	}
	select {
	case p.queue <- u:
		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(len(p.queue)))
		}
	default:
		if p.metrics != nil {
			p.metrics.UpdatesDropped.Inc()
		}
		p.logger.Printf("queue full, dropping update %s", u.Signature)
	}
}

// process runs one update through decode, enrich, and commit.
func (p *Pipeline) process(ctx context.Context, u *domain.RawUpdate) {
	start := time.Now()

	decoded, err := p.registry.Decode(u)
	if err != nil {
		if p.metrics != nil {
			p.metrics.DecodeMisses.WithLabelValues(decodeMissReason(err)).Inc()
		}
		return
	}
	if p.metrics != nil {
		p.metrics.SwapsDecoded.Inc()
		p.metrics.StageLatency.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	}

	enrichStart := time.Now()
	event := p.enricher.Enrich(decoded)
	if p.metrics != nil {
		p.metrics.StageLatency.WithLabelValues("enrich").Observe(time.Since(enrichStart).Seconds())
	}

	commitStart := time.Now()
	result, err := p.writer.Commit(ctx, event)
	if p.metrics != nil {
		p.metrics.CommitLatency.Observe(time.Since(commitStart).Seconds())
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.CommitFailures.Inc()
		}
		p.logger.Printf("commit %s: %v", event.Signature, err)
		return
	}

	switch result {
	case writer.Committed:
		if p.metrics != nil {
			p.metrics.SwapsCommitted.Inc()
		}
		if p.tracker != nil {
			p.tracker.Track(event.Pair, event.Pubkey)
		}
	case writer.Duplicate:
		if p.metrics != nil {
			p.metrics.DuplicatesSkipped.Inc()
		}
	case writer.Skipped:
		if p.metrics != nil {
			p.metrics.SwapsFiltered.WithLabelValues("threshold").Inc()
		}
	}
}

// decodeMissReason maps decode errors to metric labels.
func decodeMissReason(err error) string {
	switch {
	case errors.Is(err, decoder.ErrUnknownProgram):
		return "unknown_program"
	case errors.Is(err, decoder.ErrNotSwap):
		return "not_swap"
	case errors.Is(err, decoder.ErrMalformed):
		return "malformed"
	default:
		return "other"
	}
}
