package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	_ "github.com/otomatty/saedgewell-sample-sub003/internal/adapter/gmail"
	syncdhttp "github.com/otomatty/saedgewell-sample-sub003/internal/adapter/http"
	syncdnats "github.com/otomatty/saedgewell-sample-sub003/internal/adapter/nats"
	"github.com/otomatty/saedgewell-sample-sub003/internal/adapter/otel"
	"github.com/otomatty/saedgewell-sample-sub003/internal/adapter/postgres"
	"github.com/otomatty/saedgewell-sample-sub003/internal/adapter/ristretto"
	_ "github.com/otomatty/saedgewell-sample-sub003/internal/adapter/scrapbox"
	"github.com/otomatty/saedgewell-sample-sub003/internal/adapter/ws"
	"github.com/otomatty/saedgewell-sample-sub003/internal/config"
	"github.com/otomatty/saedgewell-sample-sub003/internal/logger"
	"github.com/otomatty/saedgewell-sample-sub003/internal/resilience"
	"github.com/otomatty/saedgewell-sample-sub003/internal/secrets"
	"github.com/otomatty/saedgewell-sample-sub003/internal/service"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"upstream_min_interval", cfg.Upstream.MinInterval,
		"sync_workers", cfg.Sync.Workers,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := syncdnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	runCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer runCache.Close()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	vault, err := secrets.NewVault(secrets.EnvLoader(
		secrets.KeyWikiSessionCookie,
		secrets.KeyMailClientID,
		secrets.KeyMailClientSecret,
		secrets.KeyMailRefreshToken,
	))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	caller := resilience.NewCaller(resilience.CallerOptions{
		MinInterval:  cfg.Upstream.MinInterval,
		MaxRetries:   cfg.Upstream.MaxRetries,
		InitialDelay: cfg.Upstream.InitialDelay,
		Breaker:      resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout),
	})

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)

	syncSvc := service.NewSyncService(service.SyncDeps{
		Store:   store,
		Vault:   vault,
		Caller:  caller,
		Queue:   queue,
		Hub:     hub,
		Metrics: metrics,
		Cache:   runCache,
	}, cfg.Sync, cfg.Upstream, cfg.Cache)
	targetSvc := service.NewTargetService(store, vault, caller, cfg.Upstream)
	scheduler := service.NewScheduler(store, syncSvc, cfg.Sync)

	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go scheduler.Start(schedCtx)

	// --- HTTP ---

	handlers := &syncdhttp.Handlers{
		Targets:   targetSvc,
		Sync:      syncSvc,
		Scheduler: scheduler,
		Hub:       hub,
	}

	r := chi.NewRouter()

	r.Use(syncdhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(syncdhttp.RequestID)
	r.Use(syncdhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	syncdhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
