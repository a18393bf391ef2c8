package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/floorline/floorline/internal/domain"
)

// queueMaxLen is the approximate maximum length for job streams, enforced
// via XADD MAXLEN ~.
const queueMaxLen int64 = 100000

// JobQueue implements domain.JobQueue using Redis Streams. Each queue is one
// stream; payloads are JSON-encoded jobs. Delivery is fire-and-forget from
// the producer's perspective.
type JobQueue struct {
	rdb    *redis.Client
	maxLen int64
}

// NewJobQueue creates a JobQueue backed by the given Client.
func NewJobQueue(c *Client) *JobQueue {
	return &JobQueue{rdb: c.Underlying(), maxLen: queueMaxLen}
}

// Enqueue appends a job to the named stream with approximate trimming.
func (q *JobQueue) Enqueue(ctx context.Context, queue string, job domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redis: marshal job %s: %w", job.Context, err)
	}

	args := &redis.XAddArgs{
		Stream: queue,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := q.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: enqueue %s: %w", queue, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.JobQueue = (*JobQueue)(nil)
