package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// QueueDispatcher defers delivery by pushing notifications onto a Redis list
// consumed by the push worker.
type QueueDispatcher struct {
	rdb   *redis.Client
	queue string
}

// NewQueueDispatcher creates a dispatcher writing to the named list.
func NewQueueDispatcher(rdb *redis.Client, queue string) *QueueDispatcher {
	return &QueueDispatcher{rdb: rdb, queue: queue}
}

// Dispatch enqueues n.
func (d *QueueDispatcher) Dispatch(ctx context.Context, n Notification) (Report, error) {
	if len(n.Tokens) == 0 {
		return Report{}, ErrNoTokens
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return Report{}, fmt.Errorf("encode notification: %w", err)
	}
	if err := d.rdb.RPush(ctx, d.queue, payload).Err(); err != nil {
		return Report{}, fmt.Errorf("enqueue notification: %w", err)
	}
	return Report{Queued: true}, nil
}
