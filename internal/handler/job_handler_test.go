package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/response"
	"github.com/tenacity/ops-backend/internal/scheduler"
	"github.com/tenacity/ops-backend/internal/service"
)

type fakeRunner struct {
	jobs    []scheduler.Job
	running map[string]bool
	last    map[string]*scheduler.RunRecord
	calls   []time.Time
}

func (f *fakeRunner) Jobs() []scheduler.Job { return f.jobs }

func (f *fakeRunner) find(name string) (scheduler.Job, bool) {
	for _, j := range f.jobs {
		if j.Name == name {
			return j, true
		}
	}
	return scheduler.Job{}, false
}

func (f *fakeRunner) Run(ctx context.Context, name, trigger string, now time.Time) (*scheduler.RunRecord, error) {
	job, ok := f.find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, name)
	}
	if f.running[name] {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrJobRunning, name)
	}
	f.calls = append(f.calls, now)
	summary, err := job.Run(ctx, now)
	rec := &scheduler.RunRecord{Job: name, Trigger: trigger, OK: err == nil, Summary: summary}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec, err
}

func (f *fakeRunner) LastRun(_ context.Context, name string) (*scheduler.RunRecord, error) {
	if _, ok := f.find(name); !ok {
		return nil, scheduler.ErrUnknownJob
	}
	if rec, ok := f.last[name]; ok {
		return rec, nil
	}
	return nil, scheduler.ErrNoRuns
}

type fakePreviewer struct {
	res *service.InvoiceRunResult
	at  time.Time
}

func (f *fakePreviewer) Preview(_ context.Context, now time.Time) (*service.InvoiceRunResult, error) {
	f.at = now
	return f.res, nil
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func setupJobs(t *testing.T) (*gin.Engine, *fakeRunner, *fakePreviewer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ok := func(_ context.Context, now time.Time) (any, error) {
		return map[string]string{"now": now.UTC().Format(time.RFC3339)}, nil
	}
	runner := &fakeRunner{
		jobs: []scheduler.Job{
			{Name: scheduler.JobTermRollover, Spec: "5 0 * * *", Run: ok},
			{Name: scheduler.JobInvoices, Spec: "0 9 * * *", Run: func(context.Context, time.Time) (any, error) {
				return nil, errors.New("store unavailable")
			}},
		},
		running: map[string]bool{},
		last:    map[string]*scheduler.RunRecord{},
	}
	previewer := &fakePreviewer{res: &service.InvoiceRunResult{
		TermID:   "T1",
		Invoices: []model.Invoice{{ID: "i1", AmountDue: 120000}, {ID: "i2", AmountDue: 60000}},
	}}
	next := func() map[string]time.Time {
		return map[string]time.Time{scheduler.JobTermRollover: time.Date(2025, 7, 15, 0, 5, 0, 0, time.UTC)}
	}
	dry := []scheduler.Job{{Name: scheduler.JobInvoices, Run: func(context.Context, time.Time) (any, error) {
		return "preview", nil
	}}}

	h := NewJobHandler(runner, next, dry, previewer, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC) }

	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	r.GET("/jobs", h.ListJobs)
	r.POST("/jobs/:name/run", h.RunJob)
	r.GET("/jobs/:name/last-run", h.LastRun)
	r.GET("/invoices/preview", h.InvoicePreview)
	return r, runner, previewer
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestListJobs(t *testing.T) {
	r, _, _ := setupJobs(t)

	w, env := do(r, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Jobs []jobView `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Jobs, 2)
	assert.Equal(t, scheduler.JobTermRollover, data.Jobs[0].Name)
	require.NotNil(t, data.Jobs[0].NextRun)
	assert.False(t, data.Jobs[0].DryRun)
	assert.Nil(t, data.Jobs[1].NextRun)
	assert.True(t, data.Jobs[1].DryRun)
}

func TestRunJob(t *testing.T) {
	r, runner, _ := setupJobs(t)

	t.Run("default now", func(t *testing.T) {
		w, env := do(r, http.MethodPost, "/jobs/roller/run", "")
		require.Equal(t, http.StatusOK, w.Code)
		var rec scheduler.RunRecord
		require.NoError(t, json.Unmarshal(env.Data, &rec))
		assert.Equal(t, scheduler.TriggerManual, rec.Trigger)
		assert.True(t, rec.OK)
	})

	t.Run("now override", func(t *testing.T) {
		w, _ := do(r, http.MethodPost, "/jobs/roller/run", `{"now":"2025-10-01T09:00:00+10:00"}`)
		require.Equal(t, http.StatusOK, w.Code)
		last := runner.calls[len(runner.calls)-1]
		assert.True(t, last.Equal(time.Date(2025, 9, 30, 23, 0, 0, 0, time.UTC)))
	})

	t.Run("bad payload", func(t *testing.T) {
		w, env := do(r, http.MethodPost, "/jobs/roller/run", `{"now":"yesterday"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.ErrInvalidPayload, env.Error.Code)
	})

	t.Run("unknown job", func(t *testing.T) {
		w, env := do(r, http.MethodPost, "/jobs/payroll/run", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, response.ErrUnknownJob, env.Error.Code)
	})

	t.Run("already running", func(t *testing.T) {
		runner.running[scheduler.JobTermRollover] = true
		defer delete(runner.running, scheduler.JobTermRollover)
		w, env := do(r, http.MethodPost, "/jobs/roller/run", "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, response.ErrJobRunning, env.Error.Code)
	})

	t.Run("job failure returns the record", func(t *testing.T) {
		w, env := do(r, http.MethodPost, "/jobs/invoices/run", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, response.ErrJobFailed, env.Error.Code)
		assert.Equal(t, "store unavailable", env.Error.Detail)
		var rec scheduler.RunRecord
		require.NoError(t, json.Unmarshal(env.Data, &rec))
		assert.False(t, rec.OK)
	})
}

func TestRunJobDryRun(t *testing.T) {
	r, runner, _ := setupJobs(t)

	w, env := do(r, http.MethodPost, "/jobs/invoices/run", `{"dry_run":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"summary":"preview"`)
	assert.Empty(t, runner.calls)

	w, env = do(r, http.MethodPost, "/jobs/roller/run", `{"dry_run":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrDryRunMissing, env.Error.Code)

	w, env = do(r, http.MethodPost, "/jobs/payroll/run", `{"dry_run":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrUnknownJob, env.Error.Code)
}

func TestRunJobOutlivesClientDisconnect(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var runErr, dryErr error
	runner := &fakeRunner{
		jobs: []scheduler.Job{{Name: scheduler.JobInvoices, Run: func(ctx context.Context, _ time.Time) (any, error) {
			runErr = ctx.Err()
			return "done", nil
		}}},
		running: map[string]bool{},
	}
	dry := []scheduler.Job{{Name: scheduler.JobInvoices, Run: func(ctx context.Context, _ time.Time) (any, error) {
		dryErr = ctx.Err()
		return "preview", nil
	}}}
	h := NewJobHandler(runner, func() map[string]time.Time { return nil }, dry, &fakePreviewer{}, zerolog.Nop())
	r := gin.New()
	r.POST("/jobs/:name/run", h.RunJob)

	for _, body := range []string{"", `{"dry_run":true}`} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/jobs/invoices/run", strings.NewReader(body)).WithContext(ctx)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, body)
	}

	assert.NoError(t, runErr)
	assert.NoError(t, dryErr)
	assert.Len(t, runner.calls, 1)
}

func TestLastRun(t *testing.T) {
	r, runner, _ := setupJobs(t)

	w, env := do(r, http.MethodGet, "/jobs/roller/last-run", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrJobNeverRan, env.Error.Code)

	runner.last[scheduler.JobTermRollover] = &scheduler.RunRecord{Job: "roller", OK: true}
	w, _ = do(r, http.MethodGet, "/jobs/roller/last-run", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(r, http.MethodGet, "/jobs/payroll/last-run", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrUnknownJob, env.Error.Code)
}

func TestInvoicePreview(t *testing.T) {
	r, _, previewer := setupJobs(t)

	w, env := do(r, http.MethodGet, "/invoices/preview?now=2025-07-14T09:00:00%2B10:00", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":"$1800.00"`)
	assert.True(t, previewer.at.Equal(time.Date(2025, 7, 13, 23, 0, 0, 0, time.UTC)))

	w, env = do(r, http.MethodGet, "/invoices/preview?now=soon", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
}
