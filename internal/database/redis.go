package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/config"
)

// NewRedisClient connects the client that carries the push queue and the job
// run records. The push worker parks one connection in BLPOP, so the pool
// keeps idle connections warm for the runner's record writes.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = ApplicationName
	}
	if opt.MinIdleConns < 2 {
		opt.MinIdleConns = 2
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Str("client_name", opt.ClientName).
		Msg("Run store and push queue connected")

	return rdb, nil
}
