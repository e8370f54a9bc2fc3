package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/handler"
	"github.com/tenacity/ops-backend/internal/middleware"
	"github.com/tenacity/ops-backend/internal/response"
	"github.com/tenacity/ops-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Jobs   *handler.JobHandler
	Health *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", handlers.Health.Health)

	// ─── Operator Group (JWT + Rate Limited) ───────────────────────────
	// Job runs are expensive; 6 per minute per operator.
	opsLimiter := middleware.NewRateLimiter(6, time.Minute)

	opsAPI := router.Group("/api/v1/ops")
	opsAPI.Use(middleware.RequireOperatorJWT(authService))
	{
		opsAPI.GET("/jobs", handlers.Jobs.ListJobs)
		opsAPI.GET("/jobs/:name/last-run", handlers.Jobs.LastRun)
		opsAPI.POST("/jobs/:name/run", opsLimiter.Middleware(), handlers.Jobs.RunJob)

		// Previews carry every invoice of the term; compress them.
		opsAPI.GET("/invoices/preview",
			opsLimiter.Middleware(),
			middleware.Brotli(5, middleware.BrotliMinLength),
			handlers.Jobs.InvoicePreview,
		)
	}

	return router
}
