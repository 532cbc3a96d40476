package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/moonflip/settlement-engine/internal/api"
	"github.com/moonflip/settlement-engine/internal/engine"
	"github.com/moonflip/settlement-engine/internal/event"
	"github.com/moonflip/settlement-engine/internal/ledger"
	"github.com/moonflip/settlement-engine/internal/metrics"
	"github.com/moonflip/settlement-engine/internal/model"
	"github.com/moonflip/settlement-engine/internal/oracle"
	"github.com/moonflip/settlement-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Escrow ledger ---
	// In production the host chain moves the funds; the in-memory ledger
	// stands in for local runs. LEDGER_OPENING_BALANCE seeds player accounts.
	var opening uint64
	if v := os.Getenv("LEDGER_OPENING_BALANCE"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			slog.Error("invalid LEDGER_OPENING_BALANCE", "err", err)
			os.Exit(1)
		}
		opening = parsed
	}
	lg := ledger.NewMemoryLedger(opening)
	slog.Warn("using in-memory escrow ledger; host chain integration not configured")

	// --- Oracle authority identity ---
	oracleID, err := oracleIdentity()
	if err != nil {
		slog.Error("oracle identity", "err", err)
		os.Exit(1)
	}
	slog.Info("oracle authority", "identity", oracleID.String())

	// --- Event sinks ---
	hub := api.NewWSHub()
	go hub.Run()

	sinks := event.Multi{event.LogSink{}, hub}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaSink := event.NewKafkaSink(strings.Split(brokers, ","), os.Getenv("KAFKA_TOPIC"))
		cleanup = append(cleanup, func() { kafkaSink.Close() })
		sinks = append(sinks, kafkaSink)
		slog.Info("Kafka event sink enabled")
	}

	// --- Engine ---
	eng := engine.New(st, lg, oracleID, sinks)

	// --- Oracle authority worker ---
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	if feedURL := os.Getenv("ORACLE_FEED_URL"); feedURL != "" {
		interval := 15 * time.Second
		if v := os.Getenv("ORACLE_POLL_INTERVAL"); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				slog.Error("invalid ORACLE_POLL_INTERVAL", "err", err)
				os.Exit(1)
			}
			interval = parsed
		}
		authority := oracle.NewAuthority(eng, oracle.NewFeed(feedURL), oracleID)
		go authority.Run(workerCtx, interval)
		slog.Info("oracle worker enabled", "feed", feedURL)
	} else {
		slog.Warn("ORACLE_FEED_URL not set, prices must be recorded via the API")
	}

	// --- HTTP router ---
	srvHandlers := api.NewServer(eng)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"settlement-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time lifecycle events.
		r.Get("/ws", hub.HandleWS)

		srvHandlers.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("settlement-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down settlement-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("settlement-engine stopped")
}

// oracleIdentity resolves the oracle authority from ORACLE_AUTHORITY, or
// generates a throwaway identity for local runs.
func oracleIdentity() (model.Identity, error) {
	if v := os.Getenv("ORACLE_AUTHORITY"); v != "" {
		return model.ParseIdentity(v)
	}

	var id model.Identity
	if _, err := rand.Read(id[:]); err != nil {
		return id, err
	}
	slog.Warn("ORACLE_AUTHORITY not set, generated ephemeral oracle identity")
	return id, nil
}
