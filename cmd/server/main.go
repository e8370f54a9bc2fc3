package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/app"
	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/database"
	"github.com/tenacity/ops-backend/internal/handler"
	"github.com/tenacity/ops-backend/internal/logger"
	"github.com/tenacity/ops-backend/internal/router"
	"github.com/tenacity/ops-backend/internal/scheduler"
	"github.com/tenacity/ops-backend/internal/service"
	"github.com/tenacity/ops-backend/internal/validator"
	"github.com/tenacity/ops-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("timezone", cfg.BusinessTimezone).
		Str("push_mode", cfg.PushMode).
		Msg("Starting tutoring ops backend")

	if cfg.Location().String() != cfg.BusinessTimezone {
		log.Warn().Str("timezone", cfg.BusinessTimezone).Msg("Unknown business timezone, using UTC")
	}

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

	// ─── Initialize Delivery ───────────────────────────────────────────
	delivery, err := app.NewDelivery(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize push delivery")
	}
	mailer := app.NewMailer(cfg, log)

	// ─── Initialize Services ──────────────────────────────────────────
	stores := app.NewStores(pool, log)
	services := app.NewServices(cfg, stores, delivery.Jobs, mailer, log)
	dryRuns := app.NewDryRunServices(cfg, stores, log)
	authService := service.NewAuthService(cfg)

	// ─── Initialize Scheduler ─────────────────────────────────────────
	runner := scheduler.NewRunner(scheduler.NewRedisRunStore(rdb), cfg.JobTimeout, log)
	runner.Register(scheduler.DailyJobs(cfg.Schedules, services)...)

	sched, err := scheduler.New(runner, cfg.Location(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule jobs")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Jobs:   handler.NewJobHandler(runner, sched.Next, scheduler.DryRunJobs(dryRuns), services.Invoices, log),
		Health: handler.NewHealthHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	if cfg.PushMode == app.PushQueue {
		pushWorker := worker.NewPushWorker(rdb, delivery.Sender, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			pushWorker.Start(workerCtx)
		}()
	}

	sched.Start()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

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

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop firing jobs and let a running one finish within its timeout.
	jobCtx, jobCancel := context.WithTimeout(context.Background(), cfg.JobTimeout)
	defer jobCancel()
	sched.Stop(jobCtx)

	// 3. Stop the push worker; it drains the queue before returning.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
