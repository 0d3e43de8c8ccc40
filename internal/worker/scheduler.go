package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultJobTimeout bounds a single scheduled run.
const DefaultJobTimeout = 10 * time.Minute

// Scheduler runs named jobs on cron schedules. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler creates a UTC cron scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{cron: c, timeout: DefaultJobTimeout, logger: logger}
}

// Add registers fn under name on the standard five-field schedule spec.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error("scheduled job failed", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Info("scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and returns a context that is done once running jobs finish.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// Downgrader applies pending plan downgrades that have come due.
type Downgrader interface {
	ApplyDueDowngrades(ctx context.Context) (int, error)
}

// DowngradeJob returns the scheduled job that applies due downgrades. applied may be nil.
func DowngradeJob(d Downgrader, applied prometheus.Counter, logger *zap.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		n, err := d.ApplyDueDowngrades(ctx)
		if err != nil {
			return err
		}
		if applied != nil {
			applied.Add(float64(n))
		}
		if n > 0 {
			logger.Info("pending downgrades applied", zap.Int("count", n))
		}
		return nil
	}
}
