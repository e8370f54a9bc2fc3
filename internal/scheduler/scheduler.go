package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Run triggers.
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
	TriggerCLI    = "cli"
)

// Scheduler fires the runner's jobs on their cron expressions in the
// business timezone.
type Scheduler struct {
	cron    *cron.Cron
	runner  *Runner
	entries map[string]cron.EntryID
	log     zerolog.Logger
}

// New creates a Scheduler for every job registered on runner.
func New(runner *Runner, loc *time.Location, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		runner:  runner,
		entries: make(map[string]cron.EntryID),
		log:     log.With().Str("component", "scheduler").Logger(),
	}
	for _, job := range runner.Jobs() {
		if job.Spec == "" {
			continue
		}
		name := job.Name
		id, err := s.cron.AddFunc(job.Spec, func() { s.fire(name) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", name, job.Spec, err)
		}
		s.entries[name] = id
		s.log.Info().Str("job", name).Str("spec", job.Spec).Msg("Job scheduled")
	}
	return s, nil
}

func (s *Scheduler) fire(name string) {
	// Errors are recorded and logged by the runner.
	_, _ = s.runner.Run(context.Background(), name, TriggerCron, time.Now())
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("Scheduler stopped")
	case <-ctx.Done():
		s.log.Warn().Msg("Scheduler stop timed out with jobs still running")
	}
}

// Next returns the next fire time of each scheduled job. Times are zero
// until the scheduler has started.
func (s *Scheduler) Next() map[string]time.Time {
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}
