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
	"sonar/internal/domain"
	"sonar/internal/observability"
	"sonar/internal/storage"
	chstore "sonar/internal/storage/clickhouse"
	"sonar/internal/storage/migrations"
	pgstore "sonar/internal/storage/postgres"
)

// tuning holds the environment-driven scheduler knobs.
type tuning struct {
	Tick  time.Duration `envconfig:"AGGREGATION_TICK" default:"0s"`
	Grace time.Duration `envconfig:"AGGREGATION_GRACE" default:"2m"`
}

func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (used instead of PostgreSQL when set)")
	series := flag.String("series", "", "Comma-separated series to aggregate, as pair:pubkey entries")
	intervals := flag.String("intervals", "1m,5m,1h,1d", "Comma-separated candlestick intervals")
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[scheduler] ", log.LstdFlags|log.Lshortfile)

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

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, logger, cfg, *postgresDSN, *clickhouseDSN, *series, *intervals); err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// run wires the aggregation scheduler and blocks until ctx is cancelled.
func run(ctx context.Context, logger *log.Logger, cfg tuning, postgresDSN, clickhouseDSN, series, intervals string) error {
	if postgresDSN == "" && clickhouseDSN == "" {
		return fmt.Errorf("--postgres-dsn or --clickhouse-dsn is required")
	}

	var swapStore storage.SwapEventStore
	var candleStore storage.CandlestickStore

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("migrate clickhouse: %w", err)
		}
		defer conn.Close()
		swapStore = chstore.NewSwapEventStore(conn)
		candleStore = chstore.NewCandlestickStore(conn)
	} else {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
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

	ivs, err := parseIntervals(intervals)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics("", nil)
	agg := candles.NewAggregator(swapStore, candleStore, metrics, candles.Options{
		Intervals: ivs,
		Tick:      cfg.Tick,
		Grace:     cfg.Grace,
	}, logger)

	keys, err := parseSeries(series)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("--series is required, e.g. --series SOL/USDC:TOKEN1")
	}
	for _, k := range keys {
		agg.Track(k.Pair, k.Pubkey)
	}
	logger.Printf("Aggregating %d series across intervals %s", len(keys), intervals)

	agg.Run(ctx)
	return ctx.Err()
}

// parseSeries parses pair:pubkey entries.
func parseSeries(s string) ([]candles.Key, error) {
	var keys []candles.Key
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.LastIndex(part, ":")
		if idx <= 0 || idx == len(part)-1 {
			return nil, fmt.Errorf("invalid series %q, want pair:pubkey", part)
		}
		keys = append(keys, candles.Key{Pair: part[:idx], Pubkey: part[idx+1:]})
	}
	return keys, nil
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
