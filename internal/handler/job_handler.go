package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/middleware"
	"github.com/tenacity/ops-backend/internal/response"
	"github.com/tenacity/ops-backend/internal/scheduler"
	"github.com/tenacity/ops-backend/internal/service"
	"github.com/tenacity/ops-backend/internal/validator"
)

// JobRunner runs and records the batch jobs.
type JobRunner interface {
	Jobs() []scheduler.Job
	Run(ctx context.Context, name, trigger string, now time.Time) (*scheduler.RunRecord, error)
	LastRun(ctx context.Context, name string) (*scheduler.RunRecord, error)
}

// InvoicePreviewer builds the invoices of the active term without writing them.
type InvoicePreviewer interface {
	Preview(ctx context.Context, now time.Time) (*service.InvoiceRunResult, error)
}

// JobHandler exposes the batch jobs to operators.
type JobHandler struct {
	runner    JobRunner
	next      func() map[string]time.Time
	dryRuns   map[string]scheduler.JobFunc
	previewer InvoicePreviewer
	now       func() time.Time
	log       zerolog.Logger
}

// NewJobHandler creates a JobHandler. next reports upcoming cron fires and
// may be nil when no schedule is running.
func NewJobHandler(
	runner JobRunner,
	next func() map[string]time.Time,
	dryRuns []scheduler.Job,
	previewer InvoicePreviewer,
	log zerolog.Logger,
) *JobHandler {
	dr := make(map[string]scheduler.JobFunc, len(dryRuns))
	for _, j := range dryRuns {
		dr[j.Name] = j.Run
	}
	return &JobHandler{
		runner:    runner,
		next:      next,
		dryRuns:   dr,
		previewer: previewer,
		now:       time.Now,
		log:       log.With().Str("component", "job_handler").Logger(),
	}
}

type jobView struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	DryRun   bool       `json:"dry_run_supported"`
}

// ListJobs godoc
// GET /api/v1/ops/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	var next map[string]time.Time
	if h.next != nil {
		next = h.next()
	}

	jobs := h.runner.Jobs()
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		v := jobView{Name: j.Name, Schedule: j.Spec}
		if t, ok := next[j.Name]; ok && !t.IsZero() {
			v.NextRun = &t
		}
		_, v.DryRun = h.dryRuns[j.Name]
		views = append(views, v)
	}
	response.Success(c, http.StatusOK, gin.H{"jobs": views})
}

type runJobRequest struct {
	// Now overrides the run's reference time (RFC3339).
	Now    *time.Time `json:"now"`
	DryRun bool       `json:"dry_run"`
}

// RunJob godoc
// POST /api/v1/ops/jobs/:name/run
// Runs a job synchronously. The body is optional.
func (h *JobHandler) RunJob(c *gin.Context) {
	name := c.Param("name")

	var req runJobRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, fields)
			return
		}
	}
	now := h.now()
	if req.Now != nil {
		now = *req.Now
	}

	log := h.log.With().Str("job", name).Bool("dry_run", req.DryRun).Logger()
	if claims := middleware.GetClaims(c); claims != nil {
		log = log.With().Str("operator", claims.Subject).Logger()
	}

	if req.DryRun {
		h.dryRun(c, name, now, log)
		return
	}

	log.Info().Time("now", now).Msg("Manual job run requested")
	rec, err := h.runner.Run(runContext(c), name, scheduler.TriggerManual, now)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		response.Fail(c, http.StatusNotFound, response.ErrUnknownJob)
	case errors.Is(err, scheduler.ErrJobRunning):
		response.Fail(c, http.StatusConflict, response.ErrJobRunning)
	case err != nil && rec != nil:
		response.FailWithDetail(c, http.StatusInternalServerError, response.ErrJobFailed, rec.Error, rec)
	case err != nil:
		log.Error().Err(err).Msg("Job run failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	default:
		response.Success(c, http.StatusOK, rec)
	}
}

func (h *JobHandler) dryRun(c *gin.Context, name string, now time.Time, log zerolog.Logger) {
	run, ok := h.dryRuns[name]
	if !ok {
		if !h.known(name) {
			response.Fail(c, http.StatusNotFound, response.ErrUnknownJob)
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrDryRunMissing)
		return
	}

	summary, err := run(runContext(c), now)
	if err != nil {
		log.Error().Err(err).Msg("Dry run failed")
		response.FailWithDetail(c, http.StatusInternalServerError, response.ErrJobFailed, err.Error(), nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"job": name, "dry_run": true, "summary": summary})
}

// runContext keeps request values but not its cancellation, so a client that
// disconnects does not abort a job halfway. The runner applies the job timeout.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (h *JobHandler) known(name string) bool {
	for _, j := range h.runner.Jobs() {
		if j.Name == name {
			return true
		}
	}
	return false
}

// LastRun godoc
// GET /api/v1/ops/jobs/:name/last-run
func (h *JobHandler) LastRun(c *gin.Context) {
	rec, err := h.runner.LastRun(c.Request.Context(), c.Param("name"))
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		response.Fail(c, http.StatusNotFound, response.ErrUnknownJob)
	case errors.Is(err, scheduler.ErrNoRuns):
		response.Fail(c, http.StatusNotFound, response.ErrJobNeverRan)
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to load last run")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	default:
		response.Success(c, http.StatusOK, rec)
	}
}

// InvoicePreview godoc
// GET /api/v1/ops/invoices/preview?now=2025-07-14T09:00:00+10:00
func (h *JobHandler) InvoicePreview(c *gin.Context) {
	now := h.now()
	if raw := c.Query("now"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"now": "now must be an RFC3339 timestamp"})
			return
		}
		now = t
	}

	res, err := h.previewer.Preview(c.Request.Context(), now)
	if err != nil {
		h.log.Error().Err(err).Msg("Invoice preview failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"term_id":          res.TermID,
		"invoices":         res.Invoices,
		"skipped_students": res.SkippedStudents,
		"total":            service.FormatCents(res.Total()),
	})
}
