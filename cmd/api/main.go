// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the VentiGrow console server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool) and Redis.
//  4. Run database migrations (idempotent).
//  5. Start the identity provider and the session manager.
//  6. Start the sensor poller.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/taibuivan/ventigrow/internal/api"
	"github.com/taibuivan/ventigrow/internal/greenhouse"
	"github.com/taibuivan/ventigrow/internal/platform/blob"
	"github.com/taibuivan/ventigrow/internal/platform/config"
	"github.com/taibuivan/ventigrow/internal/platform/constants"
	"github.com/taibuivan/ventigrow/internal/platform/metrics"
	"github.com/taibuivan/ventigrow/internal/platform/middleware"
	"github.com/taibuivan/ventigrow/internal/platform/migration"
	pgstore "github.com/taibuivan/ventigrow/internal/platform/postgres"
	redisstore "github.com/taibuivan/ventigrow/internal/platform/redis"
	"github.com/taibuivan/ventigrow/internal/platform/sec"
	"github.com/taibuivan/ventigrow/internal/users/identity"
	"github.com/taibuivan/ventigrow/internal/users/profile"
	"github.com/taibuivan/ventigrow/internal/users/session"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Startup deadline so misconfiguration fails fast.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Background workers stop when this is cancelled.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// ── 3. PostgreSQL & Redis ─────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 4. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 5. Platform Services ──────────────────────────────────────────────
	tokens, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	blobs, err := blob.Open(cfg.BlobPath, cfg.PublicBaseURL)
	must(log, err, "open blob store")
	defer func() {
		if cerr := blobs.Close(); cerr != nil {
			log.Error("blob_close_failed", slog.Any("error", cerr))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	rateLimiter := middleware.NewRateLimiter()
	go rateLimiter.Sweep(runCtx)

	// ── 6. Identity Provider & Session ────────────────────────────────────
	provider := identity.NewClient(
		identity.Options{
			ClientID:                 cfg.ClientID,
			RequireEmailConfirmation: cfg.RequireEmailConfirmation,
			ConfirmURL:               cfg.ConfirmURL,
			ResetURL:                 cfg.ResetURL,
			RedirectOrigins:          cfg.RedirectOrigins(),
		},
		identity.Stores{
			Accounts:      identity.NewAccountRepository(pool),
			Refresh:       identity.NewRefreshRepository(rdb),
			ResetTokens:   identity.NewResetTokenRepository(rdb),
			VerifyTokens:  identity.NewVerificationTokenRepository(rdb),
			ClientSession: identity.NewClientSessionRepository(rdb),
		},
		identity.NewEventBus(rdb, cfg.ClientID, log),
		tokens,
		identity.NewLogMailer(log),
		log,
	)
	go func() {
		if err := provider.Run(runCtx); err != nil {
			log.Error("identity_auto_refresh_exited", slog.Any("error", err))
		}
	}()

	manager := session.NewManager(provider, profile.NewStore(pool), blobs, collector, log,
		session.Options{LogoutGrace: cfg.LogoutGrace})
	must(log, manager.Start(runCtx), "start session manager")
	defer manager.Close()

	// ── 7. Greenhouse ─────────────────────────────────────────────────────
	readings := greenhouse.NewPostgresRepository(pool)
	poller := greenhouse.NewPoller(greenhouse.NewSimulatedSource(uint64(time.Now().UnixNano())),
		readings, collector, log, cfg.SensorPollInterval)
	go func() {
		if err := poller.Run(runCtx); err != nil {
			log.Error("sensor_poller_exited", slog.Any("error", err))
		}
	}()

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		CheckCache:    func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
	}, log)

	server := api.NewServer(cfg, log,
		api.Middleware{Verifier: tokens, RateLimiter: rateLimiter, Observer: collector},
		api.Handlers{
			Liveness:     liveness,
			Readiness:    readiness,
			Metrics:      metrics.Handler(registry),
			Session:      session.NewHandler(manager, tokens, cfg),
			SessionGuard: manager.RequireAuthenticated,
			Greenhouse:   greenhouse.NewHandler(greenhouse.NewService(readings, collector, log)),
			Storage:      blob.NewHandler(blobs),
		},
	)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
	}
	runCancel()

	log.Info("server_stopped")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// Startup wiring only. After startup, errors are returned and handled.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
