// Package worker runs the background side of the platform: draining the audit queue and the scheduled
// billing and archival jobs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/pkg/queue"
)

// JobQueue is the queue surface the audit processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
	Len(ctx context.Context) (int64, error)
}

// AuditWriter persists one audit record. Writes must be idempotent on the record id.
type AuditWriter interface {
	Write(ctx context.Context, e *models.AuditLog) error
}

// AuditProcessor moves queued audit records into the database.
type AuditProcessor struct {
	queue   JobQueue
	store   AuditWriter
	depth   prometheus.Gauge
	backoff time.Duration
	logger  *zap.Logger
}

// NewAuditProcessor creates an audit queue processor. depth may be nil.
func NewAuditProcessor(q JobQueue, store AuditWriter, depth prometheus.Gauge, logger *zap.Logger) *AuditProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditProcessor{queue: q, store: store, depth: depth, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one audit record job.
func (p *AuditProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAuditRecord {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var entry models.AuditLog
	if err := json.Unmarshal(job.Payload, &entry); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := p.store.Write(ctx, &entry); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is cancelled.
func (p *AuditProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("audit worker stopping")
			return
		default:
		}
		p.observeDepth(ctx)

		job, err := p.queue.Dequeue(ctx, queue.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("audit job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *AuditProcessor) observeDepth(ctx context.Context) {
	if p.depth == nil {
		return
	}
	if n, err := p.queue.Len(ctx); err == nil {
		p.depth.Set(float64(n))
	}
}

func (p *AuditProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
