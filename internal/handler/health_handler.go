package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/response"
)

const healthTimeout = 2 * time.Second

// dependency is a named liveness probe.
type dependency struct {
	name string
	ping func(ctx context.Context) error
}

// HealthHandler reports the liveness of the store, Redis and the push queue.
type HealthHandler struct {
	deps       []dependency
	queueDepth func(ctx context.Context) (int64, error)
	startTime  time.Time
	log        zerolog.Logger
}

// NewHealthHandler probes pool and rdb and reads the push queue backlog.
func NewHealthHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *HealthHandler {
	return newHealthHandler(
		[]dependency{
			{name: "postgres", ping: pool.Ping},
			{name: "redis", ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
		func(ctx context.Context) (int64, error) {
			return rdb.LLen(ctx, config.WorkerKey.PushNotificationQueue).Result()
		},
		log,
	)
}

func newHealthHandler(deps []dependency, queueDepth func(context.Context) (int64, error), log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		deps:       deps,
		queueDepth: queueDepth,
		startTime:  time.Now(),
		log:        log.With().Str("component", "health_handler").Logger(),
	}
}

type healthStatus struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Goroutines   int               `json:"goroutines"`
	Dependencies map[string]string `json:"dependencies"`
	PushQueue    *int64            `json:"push_queue,omitempty"`
}

// Health godoc
// GET /health
// Responds 503 when any dependency fails its ping.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	st := healthStatus{
		Status:       "ok",
		Uptime:       formatDuration(time.Since(h.startTime)),
		Goroutines:   runtime.NumGoroutine(),
		Dependencies: make(map[string]string, len(h.deps)),
	}
	for _, d := range h.deps {
		if err := d.ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", d.name).Msg("Health check failed")
			st.Dependencies[d.name] = "down"
			st.Status = "degraded"
			continue
		}
		st.Dependencies[d.name] = "up"
	}

	if h.queueDepth != nil {
		if n, err := h.queueDepth(ctx); err == nil {
			st.PushQueue = &n
		}
	}

	if st.Status != "ok" {
		response.FailWithDetail(c, http.StatusServiceUnavailable, response.ErrUnavailable, "", st)
		return
	}
	response.Success(c, http.StatusOK, st)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
