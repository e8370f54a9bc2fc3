package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/config"
)

// ApplicationName tags every store and Redis connection opened by this service.
const ApplicationName = "tutoring-ops"

// NewPostgresPool opens the pool shared by the batch jobs and the health check.
// Sessions run in UTC; timestamps are converted to the business timezone in Go.
func NewPostgresPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = poolSize(cfg.MaxDBConns, cfg.RollerConcurrency)
	if poolCfg.MaxConns != cfg.MaxDBConns {
		log.Warn().
			Int32("configured", cfg.MaxDBConns).
			Int32("using", poolCfg.MaxConns).
			Int("roller_concurrency", cfg.RollerConcurrency).
			Msg("MAX_DB_CONNS below roller fan-out, raising pool size")
	}
	poolCfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().
		Int32("max_conns", poolCfg.MaxConns).
		Str("database", poolCfg.ConnConfig.Database).
		Msg("Document store connected")

	return pool, nil
}

// poolSize leaves one connection free beyond the roller's attendance writers
// so the health check and run lookups are not starved during a rollover.
func poolSize(maxConns int32, fanOut int) int32 {
	need := int32(fanOut) + 1
	if maxConns < need {
		return need
	}
	return maxConns
}
