// Command run-job runs one batch job once, outside the server's schedule.
//
//	run-job [-dry-run] [-now 2025-07-14T09:00:00+10:00] <roller|invoices|reminders|invoice-reminders>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/app"
	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/database"
	"github.com/tenacity/ops-backend/internal/logger"
	"github.com/tenacity/ops-backend/internal/scheduler"
)

func main() {
	var (
		dryRun bool
		nowArg string
	)
	flag.BoolVar(&dryRun, "dry-run", false, "Log notifications and preview invoices without writing")
	flag.StringVar(&nowArg, "now", "", "Reference time (RFC3339), defaults to the current time")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() != 1 {
		printUsage()
		os.Exit(2)
	}
	name := flag.Arg(0)

	now := time.Now()
	if nowArg != "" {
		t, err := time.Parse(time.RFC3339, nowArg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -now: %v\n", err)
			os.Exit(2)
		}
		now = t
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	stores := app.NewStores(pool, log)

	if dryRun {
		os.Exit(runDry(ctx, cfg, stores, name, now, log))
	}

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	delivery, err := app.NewDelivery(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize push delivery")
	}

	services := app.NewServices(cfg, stores, delivery.Jobs, app.NewMailer(cfg, log), log)
	runner := scheduler.NewRunner(scheduler.NewRedisRunStore(rdb), cfg.JobTimeout, log)
	runner.Register(scheduler.DailyJobs(cfg.Schedules, services)...)

	rec, err := runner.Run(ctx, name, scheduler.TriggerCLI, now)
	if rec != nil {
		printJSON(rec)
	}
	if err != nil {
		log.Error().Err(err).Str("job", name).Msg("Job failed")
		os.Exit(1)
	}
}

func runDry(ctx context.Context, cfg *config.Config, stores app.Stores, name string, now time.Time, log zerolog.Logger) int {
	for _, job := range scheduler.DryRunJobs(app.NewDryRunServices(cfg, stores, log)) {
		if job.Name != name {
			continue
		}
		summary, err := job.Run(ctx, now)
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("Dry run failed")
			return 1
		}
		printJSON(summary)
		return 0
	}
	fmt.Fprintf(os.Stderr, "job %q has no dry run\n", name)
	return 2
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printUsage() {
	fmt.Println("Usage: run-job [flags] <job>")
	fmt.Printf("Jobs: %s, %s, %s, %s\n",
		scheduler.JobTermRollover, scheduler.JobInvoices, scheduler.JobReminders, scheduler.JobInvoiceReminders)
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
