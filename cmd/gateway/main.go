// Package main runs the gateway service: a resilient connection layer to a
// set of rippled endpoints that streams validated ledger activity, normalizes
// offer changes and fills, and persists them for downstream consumers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"xrpl-gateway/internal/nodepool"
	"xrpl-gateway/internal/observability"
	"xrpl-gateway/internal/ratelimit"
	"xrpl-gateway/internal/storage"
	chstore "xrpl-gateway/internal/storage/clickhouse"
	"xrpl-gateway/internal/storage/memory"
	"xrpl-gateway/internal/storage/migrations"
	pgstore "xrpl-gateway/internal/storage/postgres"
	"xrpl-gateway/internal/stream"
)

func main() {
	loadEnvFile()

	endpoints := flag.String("endpoints", os.Getenv("XRPL_WS_ENDPOINTS"), "Comma-separated rippled WebSocket endpoints")
	accounts := flag.String("accounts", os.Getenv("XRPL_ACCOUNTS"), "Comma-separated accounts whose offers are tracked (empty = full transaction stream)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for offer events")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for trade fills")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	ratePer10s := flag.Int("rate", ratelimit.DefaultRatePer10s, "Request admission ceiling per endpoint over 10s")
	burstTokens := flag.Int("burst", ratelimit.DefaultBurstTokens, "Initial burst tokens per endpoint")
	cooldown := flag.Duration("cooldown", nodepool.DefaultCooldown, "How long a failed endpoint is avoided")
	switchInterval := flag.Duration("switch-interval", nodepool.DefaultProactiveSwitchInterval, "Proactive latency re-measurement interval")

	flag.Parse()

	logger := log.New(os.Stdout, "[gateway] ", log.LstdFlags|log.Lshortfile)

	urls := splitList(*endpoints)
	if len(urls) == 0 {
		logger.Fatal("--endpoints is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("")

	poolCfg := nodepool.DefaultConfig()
	poolCfg.URLs = urls
	poolCfg.Cooldown = *cooldown
	poolCfg.ProactiveSwitchInterval = *switchInterval
	poolCfg.Limiter = ratelimit.Config{
		RatePer10s:     *ratePer10s,
		BurstTokens:    *burstTokens,
		MaxBurstTokens: ratelimit.DefaultMaxBurstTokens,
	}

	pool, err := nodepool.New(poolCfg,
		nodepool.WithNotify(metrics.PoolNotify),
		nodepool.WithLatencyNotify(metrics.PoolLatency),
	)
	if err != nil {
		logger.Fatalf("create node pool: %v", err)
	}
	defer pool.Close()

	go pool.RunRefill(ctx)

	offerStore, fillStore, closeStores := setupStores(ctx, logger, *useMemory, *postgresDSN, *clickhouseDSN)
	defer closeStores()

	listener := stream.New(pool,
		stream.Config{Accounts: splitList(*accounts)},
		stream.WithOfferEventStore(offerStore),
		stream.WithTradeFillStore(fillStore),
		stream.WithMetrics(metrics),
	)

	var wg sync.WaitGroup
	started := time.Now()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("stream listener stopped: %v", err)
			cancel()
		}
	}()

	// Drain the event feed so the listener never stalls on a full channel.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range listener.Events() {
		}
	}()

	go startHTTPServer(logger, *metricsAddr, pool, started)

	logger.Printf("gateway started: %d endpoints, accounts=%d", len(urls), len(splitList(*accounts)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("received %v, shutting down", sig)
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
	logger.Println("gateway stopped")
}

// setupStores connects the configured backends. Either store may be nil when
// its backend is not configured; the listener simply skips persistence.
func setupStores(ctx context.Context, logger *log.Logger, useMemory bool, postgresDSN, clickhouseDSN string) (storage.OfferEventStore, storage.TradeFillStore, func()) {
	if useMemory {
		logger.Println("using in-memory storage")
		return memory.NewOfferEventStore(), memory.NewTradeFillStore(), func() {}
	}

	var closers []func()

	var offerStore storage.OfferEventStore
	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			logger.Fatalf("connect postgres: %v", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		offerStore = pgstore.NewOfferEventStore(pool)
		closers = append(closers, pool.Close)
		logger.Println("offer events -> postgres")
	}

	var fillStore storage.TradeFillStore
	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse migrations: %v", err)
		}
		fillStore = chstore.NewTradeFillStore(conn)
		closers = append(closers, func() { conn.Close() })
		logger.Println("trade fills -> clickhouse")
	}

	return offerStore, fillStore, func() {
		for _, c := range closers {
			c()
		}
	}
}

func startHTTPServer(logger *log.Logger, addr string, pool *nodepool.Pool, started time.Time) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		type endpointStatus struct {
			URL       string `json:"url"`
			LatencyMs int64  `json:"latency_ms"`
		}
		status := struct {
			Status    string           `json:"status"`
			Uptime    string           `json:"uptime"`
			Endpoints []endpointStatus `json:"endpoints"`
		}{
			Status: "running",
			Uptime: time.Since(started).Round(time.Second).String(),
		}
		for _, ep := range pool.Endpoints() {
			status.Endpoints = append(status.Endpoints, endpointStatus{
				URL:       ep.URL(),
				LatencyMs: pool.LastLatency(ep).Milliseconds(),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	logger.Printf("HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
