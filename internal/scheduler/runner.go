// Package scheduler runs the daily batch jobs, on a cron schedule or on
// demand, and records the outcome of each run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job already running")
	ErrNoRuns     = errors.New("job has not run yet")
)

// JobFunc runs one job as of now and returns a JSON-serialisable summary.
type JobFunc func(ctx context.Context, now time.Time) (any, error)

// Job is a named batch job with its cron expression.
type Job struct {
	Name string
	Spec string
	Run  JobFunc
}

// RunRecord is the stored outcome of one run.
type RunRecord struct {
	Job        string    `json:"job"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	Summary    any       `json:"summary,omitempty"`
}

// RunStore persists run records.
type RunStore interface {
	Save(ctx context.Context, rec *RunRecord) error
	Last(ctx context.Context, job string) (*RunRecord, error)
}

// Runner executes registered jobs with a deadline, one run per job at a time.
type Runner struct {
	store   RunStore
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	jobs    map[string]Job
	order   []string
	running map[string]bool
}

// NewRunner creates a Runner. A nil store skips recording.
func NewRunner(store RunStore, timeout time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		store:   store,
		timeout: timeout,
		log:     log.With().Str("component", "job_runner").Logger(),
		jobs:    make(map[string]Job),
		running: make(map[string]bool),
	}
}

// Register adds or replaces a job.
func (r *Runner) Register(jobs ...Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		if _, ok := r.jobs[j.Name]; !ok {
			r.order = append(r.order, j.Name)
		}
		r.jobs[j.Name] = j
	}
}

// Jobs returns the registered jobs in registration order.
func (r *Runner) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.jobs[name])
	}
	return out
}

// Has reports whether name is registered.
func (r *Runner) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[name]
	return ok
}

func (r *Runner) acquire(name string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[name]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if r.running[name] {
		return Job{}, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	r.running[name] = true
	return job, nil
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.running, name)
	r.mu.Unlock()
}

// Run executes the named job as of now. The returned record describes the
// run even when the job failed; err is the job's error.
func (r *Runner) Run(ctx context.Context, name, trigger string, now time.Time) (*RunRecord, error) {
	job, err := r.acquire(name)
	if err != nil {
		return nil, err
	}
	defer r.release(name)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	log := r.log.With().Str("job", name).Str("trigger", trigger).Logger()
	log.Info().Time("now", now).Msg("Job started")

	rec := &RunRecord{Job: name, Trigger: trigger, StartedAt: time.Now()}
	summary, runErr := job.Run(ctx, now)
	rec.FinishedAt = time.Now()
	rec.Summary = summary
	rec.OK = runErr == nil
	if runErr != nil {
		rec.Error = runErr.Error()
		log.Error().Err(runErr).Dur("took", rec.FinishedAt.Sub(rec.StartedAt)).Msg("Job failed")
	} else {
		log.Info().Dur("took", rec.FinishedAt.Sub(rec.StartedAt)).Msg("Job finished")
	}

	if r.store != nil {
		// The job's deadline may have passed; recording uses its own.
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.Save(saveCtx, rec); err != nil {
			log.Warn().Err(err).Msg("Failed to record job run")
		}
	}
	return rec, runErr
}

// LastRun returns the most recent record of the named job.
func (r *Runner) LastRun(ctx context.Context, name string) (*RunRecord, error) {
	if !r.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if r.store == nil {
		return nil, ErrNoRuns
	}
	return r.store.Last(ctx, name)
}
