package audit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/pkg/queue"
)

// Sink persists audit records.
type Sink interface {
	Write(ctx context.Context, entry *models.AuditLog) error
}

// QueueSink hands audit records to the worker through the job queue.
type QueueSink struct {
	q *queue.Queue
}

// NewQueueSink creates a sink that enqueues audit jobs.
func NewQueueSink(q *queue.Queue) *QueueSink {
	return &QueueSink{q: q}
}

func (s *QueueSink) Write(ctx context.Context, entry *models.AuditLog) error {
	return s.q.Enqueue(ctx, queue.JobTypeAuditRecord, entry)
}

// Recorder writes audit records in the background. Write failures are logged and dropped.
type Recorder struct {
	sink    Sink
	timeout time.Duration
	logger  *zap.Logger
	outcome *prometheus.CounterVec
	wg      sync.WaitGroup
}

// NewRecorder creates a recorder. outcome may be nil.
func NewRecorder(sink Sink, timeout time.Duration, outcome *prometheus.CounterVec, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{sink: sink, timeout: timeout, logger: logger, outcome: outcome}
}

// Record persists entry asynchronously. It never blocks on the sink.
func (r *Recorder) Record(entry *models.AuditLog) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.write(ctx, entry); err != nil {
			r.logger.Warn("audit record dropped",
				zap.String("module", entry.Module),
				zap.String("action", entry.Action),
				zap.String("path", entry.Path),
				zap.Error(err),
			)
			r.observe("failed")
			return
		}
		r.observe("recorded")
	}()
}

func (r *Recorder) write(ctx context.Context, entry *models.AuditLog) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("audit sink panic: %v", p)
		}
	}()
	return r.sink.Write(ctx, entry)
}

// Wait blocks until every pending record has been handed to the sink.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) observe(outcome string) {
	if r.outcome != nil {
		r.outcome.WithLabelValues(outcome).Inc()
	}
}

// Input is what a finished request contributes to its audit record.
type Input struct {
	User     *models.User
	ChurchID *uuid.UUID
	Request  *http.Request
	Params   gin.Params
	Body     map[string]interface{}
	Status   int
	At       time.Time
}

// Build assembles the audit record of a finished request.
func Build(in Input) *models.AuditLog {
	r := in.Request
	client := ParseUserAgent(r.UserAgent())
	entry := &models.AuditLog{
		ID:         uuid.New(),
		ChurchID:   in.ChurchID,
		Module:     InferModule(r.URL.Path),
		Action:     InferAction(r.Method, r.URL.Path, in.Body),
		ResourceID: InferResourceID(in.Params),
		Method:     r.Method,
		Path:       r.URL.Path,
		IPAddress:  ClientIP(r),
		Browser:    client.Browser,
		OS:         client.OS,
		DeviceType: client.DeviceType,
		Device:     client.Device,
		StatusCode: in.Status,
		Status:     models.AuditSuccess,
		CreatedAt:  in.At,
	}
	if in.Status >= http.StatusBadRequest {
		entry.Status = models.AuditFailed
	}
	if u := in.User; u != nil {
		id := u.ID
		entry.UserID = &id
		entry.UserName = u.FullName
		entry.UserRole = string(u.Role)
		if entry.ChurchID == nil {
			entry.ChurchID = u.ChurchID
		}
	}
	return entry
}
