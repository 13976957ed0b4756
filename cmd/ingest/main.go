package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"sonar/internal/candles"
	"sonar/internal/decoder"
	"sonar/internal/domain"
	"sonar/internal/enrich"
	"sonar/internal/fanout"
	"sonar/internal/observability"
	"sonar/internal/pipeline"
	"sonar/internal/pricecache"
	"sonar/internal/source"
	"sonar/internal/storage"
	chstore "sonar/internal/storage/clickhouse"
	"sonar/internal/storage/memory"
	"sonar/internal/storage/migrations"
	pgstore "sonar/internal/storage/postgres"
	"sonar/internal/writer"
)

// DEX program aliases mapped to program IDs.
var dexAliases = map[string]string{
	"raydium": decoder.RaydiumAMMV4,
	"pumpfun": decoder.PumpFun,
}

// tuning holds the environment-driven service knobs.
type tuning struct {
	Workers       int           `envconfig:"WORKERS" default:"4"`
	Queue         int           `envconfig:"QUEUE" default:"1024"`
	DrainTimeout  time.Duration `envconfig:"DRAIN_TIMEOUT" default:"5s"`
	StaleAfter    int64         `envconfig:"PRICE_STALE_AFTER_SECONDS" default:"30"`
	MinSwapAmount float64       `envconfig:"MIN_SWAP_AMOUNT_USD" default:"0.1"`
	FanoutBuffer  int           `envconfig:"FANOUT_BUFFER" default:"64"`
	Kafka         fanout.KafkaConfig
}

func main() {
	wsEndpoint := flag.String("ws-endpoint", "", "WebSocket endpoint streaming transaction updates")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (used instead of PostgreSQL when set)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of a database")
	programs := flag.String("programs", "", "Comma-separated program IDs to monitor")
	dex := flag.String("dex", "raydium,pumpfun", "Comma-separated DEX aliases (raydium, pumpfun)")
	solPrice := flag.Float64("sol-price-usd", 0, "Static SOL/USD price for quote valuation (0 leaves the cache empty)")
	kafkaEnabled := flag.Bool("kafka", false, "Also publish committed trades to Kafka")
	aggregate := flag.Bool("aggregate", false, "Run the candlestick aggregator in-process")
	intervals := flag.String("intervals", "1m,5m,1h,1d", "Comma-separated candlestick intervals for in-process aggregation")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	var cfg tuning
	if err := envconfig.Process("sonar", &cfg); err != nil {
		logger.Fatalf("parse environment: %v", err)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	programList := resolvePrograms(*programs, *dex)
	if len(programList) == 0 {
		logger.Fatal("No programs specified. Use --programs or --dex")
	}
	logger.Printf("Monitoring programs: %v", programList)

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err := run(ctx, logger, cfg, runOptions{
		wsEndpoint:    *wsEndpoint,
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
		useMemory:     *useMemory,
		programs:      programList,
		solPrice:      *solPrice,
		kafkaEnabled:  *kafkaEnabled,
		aggregate:     *aggregate,
		intervals:     *intervals,
	})

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

type runOptions struct {
	wsEndpoint    string
	postgresDSN   string
	clickhouseDSN string
	useMemory     bool
	programs      []string
	solPrice      float64
	kafkaEnabled  bool
	aggregate     bool
	intervals     string
}

// run wires the ingestion pipeline and blocks until ctx is cancelled.
func run(ctx context.Context, logger *log.Logger, cfg tuning, opts runOptions) error {
	if opts.wsEndpoint == "" {
		return fmt.Errorf("--ws-endpoint is required")
	}
	if !opts.useMemory && opts.postgresDSN == "" && opts.clickhouseDSN == "" {
		return fmt.Errorf("--postgres-dsn or --clickhouse-dsn is required (use --use-memory for in-memory storage)")
	}

	// Stores.
	var swapStore storage.SwapEventStore = memory.NewSwapEventStore()
	var candleStore storage.CandlestickStore = memory.NewCandlestickStore()

	switch {
	case opts.useMemory:
	case opts.clickhouseDSN != "":
		conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("migrate clickhouse: %w", err)
		}
		defer conn.Close()
		swapStore = chstore.NewSwapEventStore(conn)
		candleStore = chstore.NewCandlestickStore(conn)
	default:
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		swapStore = pgstore.NewSwapEventStore(pool)
		candleStore = pgstore.NewCandlestickStore(pool)
	}

	metrics := observability.NewMetrics("", nil)

	// Quote price cache. With a static price configured the entry is
	// re-stamped periodically so it never goes stale.
	prices := pricecache.NewMemoryCache(0)
	if opts.solPrice > 0 {
		prices.Put(decoder.WSOL, opts.solPrice, time.Now().Unix())
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.StaleAfter) * time.Second / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					prices.Put(decoder.WSOL, opts.solPrice, time.Now().Unix())
				}
			}
		}()
	}

	enricher := enrich.NewEnricher(prices, enrich.StaticSupply{}, enrich.Options{StaleAfter: cfg.StaleAfter})

	// Fanout: in-process hub, optionally Kafka.
	hub := fanout.NewHub(cfg.FanoutBuffer)
	hub.OnDrop(func(string) { metrics.TradesDropped.Inc() })
	hub.OnPublish(func(string) { metrics.TradesPublished.Inc() })
	publishers := fanout.Multi{hub}
	if opts.kafkaEnabled {
		kp := fanout.NewKafkaPublisher(cfg.Kafka, logger)
		kp.OnPublish(func() { metrics.TradesPublished.Inc() })
		defer kp.Close()
		publishers = append(publishers, kp)
	}

	w := writer.NewWriter(swapStore, publishers, writer.Options{MinSwapAmount: cfg.MinSwapAmount}, logger)
	w.OnRetry(func() { metrics.CommitRetries.Inc() })

	// Optional in-process aggregation.
	var tracker pipeline.Tracker
	if opts.aggregate {
		ivs, err := parseIntervals(opts.intervals)
		if err != nil {
			return err
		}
		agg := candles.NewAggregator(swapStore, candleStore, metrics, candles.Options{Intervals: ivs}, logger)
		tracker = agg
		go agg.Run(ctx)
	}

	src, err := source.NewWSSource(ctx, opts.wsEndpoint, opts.programs, nil, logger)
	if err != nil {
		return fmt.Errorf("connect update source: %w", err)
	}
	defer src.Close()

	p := pipeline.NewPipeline(src, decoder.NewRegistry(), enricher, w, tracker, metrics, pipeline.Options{
		Workers:      cfg.Workers,
		Queue:        cfg.Queue,
		DrainTimeout: cfg.DrainTimeout,
	}, logger)

	logger.Println("Starting live ingestion...")
	return p.Run(ctx)
}

// resolvePrograms resolves program IDs from flags.
func resolvePrograms(programs, dex string) []string {
	result := make(map[string]bool)

	if programs != "" {
		for _, p := range strings.Split(programs, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				result[p] = true
			}
		}
	}

	if dex != "" {
		for _, alias := range strings.Split(dex, ",") {
			alias = strings.TrimSpace(strings.ToLower(alias))
			if programID, ok := dexAliases[alias]; ok {
				result[programID] = true
			}
		}
	}

	list := make([]string, 0, len(result))
	for p := range result {
		list = append(list, p)
	}
	return list
}

// parseIntervals parses a comma-separated interval list.
func parseIntervals(s string) ([]domain.Interval, error) {
	var out []domain.Interval
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		iv, err := domain.ParseInterval(part)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no intervals specified")
	}
	return out, nil
}
