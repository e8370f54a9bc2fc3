package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/push"
)

// PollTimeout bounds each BLPop so shutdown is noticed promptly. Must be >= 1s to satisfy Redis.
const PollTimeout = 1 * time.Second

// PushWorker consumes push_notification_queue and delivers each notification
// through the wrapped dispatcher.
type PushWorker struct {
	rdb    *redis.Client
	sender push.Dispatcher
	queue  string
	log    zerolog.Logger
}

// NewPushWorker creates a new PushWorker.
func NewPushWorker(rdb *redis.Client, sender push.Dispatcher, log zerolog.Logger) *PushWorker {
	return &PushWorker{
		rdb:    rdb,
		sender: sender,
		queue:  config.WorkerKey.PushNotificationQueue,
		log:    log.With().Str("component", "push_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *PushWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *PushWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, PollTimeout, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(PollTimeout)
		}
		return
	}
	if len(result) < 2 {
		return
	}
	w.deliver(ctx, result[1])
}

// deliver sends one queued notification. A failed send is logged and
// dropped; the next scheduled run is the retry.
func (w *PushWorker) deliver(ctx context.Context, raw string) bool {
	var n push.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return false
	}

	report, err := w.sender.Dispatch(ctx, n)
	if err != nil {
		w.log.Error().Err(err).Str("user_id", n.UserID).Msg("Push delivery failed")
		return false
	}
	w.log.Debug().
		Str("user_id", n.UserID).
		Int("sent", report.Sent).
		Int("failed", len(report.Failures)).
		Msg("Push delivered")
	return true
}

// drain delivers all remaining items in the queue before shutdown.
func (w *PushWorker) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}
		if w.deliver(ctx, result) {
			drained++
		}
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
