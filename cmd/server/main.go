package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/database"
	"github.com/stemsi/placement-backend/internal/handler"
	"github.com/stemsi/placement-backend/internal/logger"
	"github.com/stemsi/placement-backend/internal/middleware"
	"github.com/stemsi/placement-backend/internal/repository"
	"github.com/stemsi/placement-backend/internal/router"
	"github.com/stemsi/placement-backend/internal/service"
	"github.com/stemsi/placement-backend/internal/validator"
	"github.com/stemsi/placement-backend/internal/worker"
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
		Strs("store_backends", cfg.StoreBackends).
		Msg("Starting Placement Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Storage (first backend that works wins) ──────────────────
	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("No storage backend available")
	}
	defer store.Close()

	// ─── Connect to Redis (optional) ───────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, continuing without cache and notifications")
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	if cfg.AdminPassHash == "" {
		log.Warn().Msg("ADMIN_PASS_HASH not set, admin login is disabled")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	userService := service.NewUserService(store)
	questionService := service.NewQuestionService(store, rdb, cfg.QuestionCacheTTL, log)
	sessionService := service.NewTestSessionService(store, questionService, rdb, service.EssayRules{
		MinWords: cfg.EssayMinWords,
		Policy:   cfg.EssayPolicy,
	}, log)
	statsService := service.NewStatsService(store)

	// ─── Seed Question Banks ──────────────────────────────────────────
	// Only empty banks are filled; edits made through the admin API survive restarts.
	if _, err := questionService.SeedFromDir(ctx, cfg.QuestionsDir, false); err != nil {
		log.Warn().Err(err).Str("dir", cfg.QuestionsDir).Msg("Question seeding failed")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, log),
		User:     handler.NewUserHandler(userService, log),
		Test:     handler.NewTestHandler(sessionService, questionService, log),
		Question: handler.NewQuestionHandler(questionService, log),
		Admin:    handler.NewAdminHandler(statsService, log),
		WS:       handler.NewWSHandler(rdb, log, cfg.AllowedOrigins),
		Health:   handler.NewHealthHandler(store.Backend(), rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	if rdb != nil {
		notifier, err := worker.NewNotifier(cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid notifier configuration")
		}
		notifyWorker := worker.NewNotifyWorker(store, rdb, notifier, log)
		go func() {
			defer close(workerDone)
			notifyWorker.Start(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer limiter.Stop()

	r := router.SetupRouter(authService, handlers, limiter, cfg)

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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the queue to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Worker drain timed out")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
