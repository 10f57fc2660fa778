// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

// Command api is the entry point for the Resumora HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire domain services: identity, quota, pressure, admission,
//     payloads, jobs, extraction, artifacts.
//  7. Start the queue engine, pressure sensor, and cleanup scheduler.
//  8. Start HTTP server with graceful shutdown.
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

	"github.com/resumora/resumora/internal/admission"
	"github.com/resumora/resumora/internal/api"
	"github.com/resumora/resumora/internal/artifact"
	"github.com/resumora/resumora/internal/cleanup"
	"github.com/resumora/resumora/internal/extract"
	"github.com/resumora/resumora/internal/identity"
	"github.com/resumora/resumora/internal/pipeline/engine"
	"github.com/resumora/resumora/internal/pipeline/job"
	"github.com/resumora/resumora/internal/pipeline/payload"
	"github.com/resumora/resumora/internal/platform/config"
	"github.com/resumora/resumora/internal/platform/constants"
	"github.com/resumora/resumora/internal/platform/metrics"
	"github.com/resumora/resumora/internal/platform/migration"
	pgstore "github.com/resumora/resumora/internal/platform/postgres"
	redisstore "github.com/resumora/resumora/internal/platform/redis"
	"github.com/resumora/resumora/internal/platform/sec"
	"github.com/resumora/resumora/internal/pressure"
	"github.com/resumora/resumora/internal/quota"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "resumora"))
	slog.SetDefault(log)

	log.Info("[Resumora] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "resumora"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("llmProvider", cfg.LLMProvider),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Application context for background loops (sensor, rate-limit reaper).
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Credentials ────────────────────────────────────────────────────
	signingKey, err := sec.DeriveSigningKey(cfg.SessionSecret)
	must(log, err, "derive signing key")
	tokenService, err := sec.NewTokenService(signingKey, constants.AuthIssuer)
	must(log, err, "initialize token service")

	// ── 7. Observability and Pressure ─────────────────────────────────────
	collector := metrics.New()

	sensor := pressure.NewSensor(pressure.Config{
		HighMarkMB:     cfg.MemoryHighMarkMB,
		LowMarkRatio:   cfg.MemoryLowMarkRatio,
		SampleInterval: cfg.MemorySampleInterval,
	}, collector, log.With(slog.String("component", "pressure")))
	go sensor.Run(appCtx)

	// ── 8. Quota and Identity ─────────────────────────────────────────────
	quotaService := quota.NewService(quota.NewLedger(pool), quota.Config{
		DailyRequests: int64(cfg.LLMDailyRequests),
		MonthlyTokens: int64(cfg.LLMMonthlyTokens),
	})

	// The quota service is an owned-data purger: principal erasure must
	// drop usage counters that carry no foreign keys.
	identityService := identity.NewService(
		identity.NewPrincipalRepository(pool),
		identity.NewSessionRepository(pool),
		tokenService,
		collector,
		log.With(slog.String("component", "identity")),
		identity.Config{
			SessionCap:    cfg.MaxSessionsPerPrincipal,
			SessionTTL:    cfg.SessionTTL,
			RevocationTTL: cfg.RevocationTTL,
		},
		quotaService,
	)

	// ── 9. Pipeline: payloads, jobs, extraction, artifacts ────────────────
	payloadService := payload.NewService(
		payload.NewStore(pool),
		payload.NewCache(rdb, cfg.PayloadCacheTTL, cfg.PayloadMaxBytes),
		log.With(slog.String("component", "payload")),
		cfg.PayloadMaxBytes,
	)

	jobService := job.NewService(
		job.NewStore(pool),
		payloadService,
		collector,
		log.With(slog.String("component", "jobs")),
	)

	var provider extract.Provider
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		provider = extract.NewGeminiProvider(extract.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, log.With(slog.String("component", "gemini")))
	default:
		provider = extract.NewOpenAIProvider(extract.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, log.With(slog.String("component", "openai")))
	}

	extractor := extract.NewService(
		provider,
		quotaService,
		collector,
		log.With(slog.String("component", "extract")),
		extract.Config{LLMDeadline: cfg.LLMDeadline},
	)

	artifactStore, err := artifact.NewStore(cfg.ArtifactRoot, log.With(slog.String("component", "artifacts")))
	must(log, err, "initialize artifact store")

	// ── 10. Queue Engine ──────────────────────────────────────────────────
	// Own context so shutdown can drain the in-flight job after the HTTP
	// server has stopped accepting work.
	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()

	processor := engine.NewEngine(
		jobService,
		payloadService,
		extractor,
		artifactStore,
		log.With(slog.String("component", "engine")),
		engine.Config{
			Deadline:     cfg.EngineDeadline,
			PollInterval: cfg.QueuePollInterval,
		},
	)
	go processor.Run(engineCtx)

	// ── 11. Cleanup Scheduler ─────────────────────────────────────────────
	cleaner := cleanup.NewOrchestrator(
		jobService,
		payloadService,
		artifactStore,
		identityService,
		quotaService,
		collector,
		log.With(slog.String("component", "cleanup")),
		cleanup.Config{
			Interval:           cfg.CleanupInterval,
			CredentialInterval: cfg.CredentialSweepInterval,
			JobRetention:       cfg.JobRetention,
		},
	)
	must(log, cleaner.Start(), "start cleanup scheduler")

	// Emergency sweep off the sensor goroutine so sampling never blocks on
	// storage.
	sensor.OnPressureOnset(func() {
		go cleaner.EmergencySweep(context.Background())
	})

	// ── 12. Admission Gate ────────────────────────────────────────────────
	gate := admission.NewGate(sensor, quotaService, collector, admission.Config{
		WindowSize:  cfg.RateWindowSize,
		MaxDefault:  int64(cfg.RateMaxDefault),
		MaxLLM:      int64(cfg.RateMaxLLM),
		MaxIdentity: int64(cfg.RateMaxIdentity),
	})

	// ── 13. Health handlers (wired with real dependency checkers) ─────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
		CheckArtifacts: artifactStore.Check,
	}, log)

	// ── 14. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   collector.Handler(),
		Identity:  identity.NewHandler(identityService),
		Jobs:      job.NewHandler(jobService),
	}

	server := api.NewServer(appCtx, cfg, log, identityService, gate, handlers)

	// ── 15. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
	}

	// Stop scheduled sweeps, then let the engine finish its claimed job.
	cleaner.Stop()
	engineCancel()
	select {
	case <-processor.Done():
		log.Info("engine drained")
	case <-time.After(constants.EngineDrainTimeout):
		log.Error("engine drain timed out; interrupted job will be recovered on next start")
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
