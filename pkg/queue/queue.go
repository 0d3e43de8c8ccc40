package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueAudit is the Redis list key for audit record jobs.
	QueueAudit = "worker:audit"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// PollTimeout bounds one blocking pop so the worker notices shutdown.
	PollTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeAuditRecord JobType = "audit_record"
)

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewQueue creates a Redis-backed job queue on the given list key.
func NewQueue(client *redis.Client, key string, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, key: key, logger: logger}
}

// Enqueue wraps payload in a job envelope and pushes it.
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(jobType)))
	return nil
}

// Dequeue blocks up to timeout for a job. It returns nil without error when the wait times out or the
// head of the queue is not a valid job.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Len returns the number of jobs waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
