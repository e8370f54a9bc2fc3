package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tenacity/ops-backend/internal/config"
)

// historySize caps the per-job run history list.
const historySize = 30

// RedisRunStore keeps the last run of each job plus a capped history.
type RedisRunStore struct {
	rdb *redis.Client
}

func NewRedisRunStore(rdb *redis.Client) *RedisRunStore {
	return &RedisRunStore{rdb: rdb}
}

func (s *RedisRunStore) Save(ctx context.Context, rec *RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}
	historyKey := config.CacheKey.JobRunHistoryKey(rec.Job)
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.JobLastRunKey(rec.Job), data, 0)
	pipe.LPush(ctx, historyKey, data)
	pipe.LTrim(ctx, historyKey, 0, historySize-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisRunStore) Last(ctx context.Context, job string) (*RunRecord, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.JobLastRunKey(job)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	rec := &RunRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode run record: %w", err)
	}
	return rec, nil
}
