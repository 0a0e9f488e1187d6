package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/checkpoint"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/router"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Int("violation_threshold", cfg.ViolationThreshold).
		Bool("checkpoint_on_change", cfg.CheckpointOnChange).
		Msg("Starting ExStem Proctor")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	testRepo := repository.NewTestRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	testService := service.NewTestService(testRepo, rdb, cfg.TestCacheTTL, log)
	sessionService := service.NewSessionService(service.SessionDeps{
		Tests:     testService,
		Store:     checkpoint.NewRedisStore(rdb, cfg.CheckpointTTL),
		Submitter: service.NewQueueSubmitter(rdb, cfg.SubmittedMarkerTTL),
		Journal:   service.NewQueueJournal(rdb),
		Guard:     service.NewSubmissionGuard(rdb, submissionRepo),
	}, session.Config{
		ViolationThreshold: cfg.ViolationThreshold,
		CheckpointOnChange: cfg.CheckpointOnChange,
		CodingGrace:        cfg.CodingGrace,
		IdleTimeout:        cfg.SessionIdleTimeout,
	}, log)
	monitorService := service.NewMonitorService(monitorRepo, submissionRepo, sessionService)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, log),
		Session: handler.NewSessionHandler(sessionService, testService, log),
		Test:    handler.NewTestHandler(testService, log),
		WS:      handler.NewWSHandler(sessionService, middleware.NewRateLimiter(cfg.ActionRatePerSecond, cfg.ActionRateBurst), log, cfg.AllowedOrigins),
		Monitor: handler.NewMonitorHandler(rdb, testService, monitorService, log),
		System:  handler.NewSystemHandler(rdb, sessionService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	for _, w := range []interface{ Start(context.Context) }{
		worker.NewAutosaveWorker(pool, rdb, log),
		worker.NewViolationWorker(pool, rdb, log),
		worker.NewSubmissionWorker(pool, rdb, log),
	} {
		workers.Add(1)
		go func() {
			defer workers.Done()
			w.Start(workerCtx)
		}()
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every test into Redis BEFORE accepting traffic so the first
	// wave of candidates does not stampede PostgreSQL.
	if err := testService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout). Hijacked WebSocket
	// connections are not tracked by Shutdown; their runners stop below.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop session runners; each saves a final checkpoint.
	sessionCtx, sessionCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sessionCancel()
	if err := sessionService.Shutdown(sessionCtx); err != nil {
		log.Error().Err(err).Msg("Session shutdown error")
	}

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
