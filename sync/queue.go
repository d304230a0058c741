package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/clarioclaims/engine/internal/platformlog"
)

// Queue is the job queue the orchestrator's dispatch loop reads from.
// Grounded on the teacher's RedisTaskQueue: LPUSH to enqueue, blocking
// BRPOP to dequeue. Delivery is at-most-once: Dequeue removes the job, and a
// crash between Dequeue and the job finishing redelivers nothing — the
// job's own checkpoint is what makes a restart resumable, not queue
// redelivery.
type Queue interface {
	Enqueue(ctx context.Context, job QueuedJob) error
	Dequeue(ctx context.Context, timeout time.Duration) (*QueuedJob, error)
	Length(ctx context.Context) (int64, error)
}

// QueuedJob is the wire envelope pushed through the queue: just enough to
// look the full domain.SyncJob up from the JobStore and resume it.
type QueuedJob struct {
	JobID    string `json:"job_id"`
	SellerID string `json:"seller_id"`
	Priority int    `json:"priority"`
}

// RedisQueueConfig names the Redis keys and retry behavior, mirroring the
// teacher's RedisTaskQueueConfig shape.
type RedisQueueConfig struct {
	QueueKey      string
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultRedisQueueConfig matches the naming convention the teacher uses for
// its own task queue keys, namespaced to this engine.
func DefaultRedisQueueConfig() RedisQueueConfig {
	return RedisQueueConfig{
		QueueKey:      "claims:sync:queue",
		RetryAttempts: 3,
		RetryDelay:    100 * time.Millisecond,
	}
}

// RedisQueue implements Queue over a single Redis list via LPUSH/BRPOP.
type RedisQueue struct {
	client *redis.Client
	config RedisQueueConfig
	logger platformlog.Logger
}

func NewRedisQueue(client *redis.Client, config RedisQueueConfig, logger platformlog.ComponentAwareLogger) *RedisQueue {
	if config.QueueKey == "" {
		config = DefaultRedisQueueConfig()
	}
	var lg platformlog.Logger = platformlog.Noop()
	if logger != nil {
		lg = logger.WithComponent("sync/queue")
	}
	return &RedisQueue{client: client, config: config, logger: lg}
}

// Enqueue pushes job onto the queue, retrying transient Redis errors up to
// RetryAttempts times with RetryDelay between tries, the way the teacher's
// RedisTaskQueue.Enqueue does.
func (q *RedisQueue) Enqueue(ctx context.Context, job QueuedJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal queued job: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= q.config.RetryAttempts; attempt++ {
		if err := q.client.LPush(ctx, q.config.QueueKey, payload).Err(); err != nil {
			lastErr = err
			q.logger.Warn("enqueue attempt failed", map[string]interface{}{"attempt": attempt, "error": err.Error()})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(q.config.RetryDelay):
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("enqueue job %s after %d attempts: %w", job.JobID, q.config.RetryAttempts, lastErr)
}

// Dequeue blocks up to timeout for a job, returning (nil, nil) on timeout
// the same way the teacher's queue maps redis.Nil to a non-error empty
// result rather than surfacing it as a failure.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*QueuedJob, error) {
	result, err := q.client.BRPop(ctx, timeout, q.config.QueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("dequeue: unexpected BRPOP reply shape")
	}

	var job QueuedJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshal queued job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.config.QueueKey).Result()
}

// MemoryQueue is an in-process Queue used by tests and the reference CLI,
// backed by a buffered channel sized the way §4.8's bounded
// producer/consumer capacity-4 backpressure contract names.
type MemoryQueue struct {
	ch chan QueuedJob
}

// QueueCapacity is the bounded channel depth the orchestrator's
// producer/consumer pipeline uses for backpressure (§4.8).
const QueueCapacity = 4

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{ch: make(chan QueuedJob, QueueCapacity)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job QueuedJob) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*QueuedJob, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case job := <-q.ch:
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Length(ctx context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}

var (
	_ Queue = (*RedisQueue)(nil)
	_ Queue = (*MemoryQueue)(nil)
)
