package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/config"
	"github.com/stemsi/classroom-backend/internal/database"
	"github.com/stemsi/classroom-backend/internal/handler"
	"github.com/stemsi/classroom-backend/internal/logger"
	"github.com/stemsi/classroom-backend/internal/middleware"
	"github.com/stemsi/classroom-backend/internal/repository"
	"github.com/stemsi/classroom-backend/internal/router"
	"github.com/stemsi/classroom-backend/internal/service"
	"github.com/stemsi/classroom-backend/internal/validator"
	"github.com/stemsi/classroom-backend/internal/worker"
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
		Msg("Starting Classroom Backend")

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
	userRepo := repository.NewUserRepository(pool)
	classroomRepo := repository.NewClassroomRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo)
	examService := service.NewExamService(examRepo, submissionRepo, rdb, cfg.ExamCacheTTL, log)
	submissionService := service.NewSubmissionService(submissionRepo, rdb, log)
	noticeService := service.NewNoticeService(rdb, log)
	classroomService := service.NewClassroomService(
		classroomRepo,
		examService,
		submissionService,
		noticeService,
		rdb,
		cfg.SubmitTimeout,
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, log),
		Session:   handler.NewSessionHandler(log),
		Classroom: handler.NewClassroomHandler(classroomService),
		Exam:      handler.NewExamHandler(examService, classroomService),
		WS:        handler.NewWSHandler(noticeService, cfg.SubmitTimeout, log, cfg.AllowedOrigins),
		Monitor:   handler.NewMonitorHandler(rdb, examService, classroomService, log),
		System:    handler.NewSystemHandler(pool, rdb, classroomService, log),
	}

	loginLimiter := middleware.NewRateLimiter(
		middleware.NewRedisCounter(rdb),
		cfg.LoginRatePerMinute,
		time.Minute,
		config.CacheKey.LoginAttemptsKey,
		log,
	)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	gradingWorker := worker.NewGradingWorker(submissionRepo, rdb, log)
	go gradingWorker.Start(workerCtx)

	go classroomService.RunEviction(workerCtx, time.Minute, cfg.CatalogIdleTTL)

	// Submissions saved while the worker was down are still ungraded.
	if n, err := submissionService.RequeueUngraded(ctx); err != nil {
		log.Warn().Err(err).Msg("Requeue of ungraded submissions failed")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("Ungraded submissions requeued")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, classroomService, loginLimiter, handlers, cfg)

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

	// 2. Close open exam sessions. Running attempts are discarded.
	classroomService.Shutdown()

	// 3. Stop the grading worker and wait for its last batch.
	workerCancel()
	select {
	case <-gradingWorker.Done():
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Grading worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
