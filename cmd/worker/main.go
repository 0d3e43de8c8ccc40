// Package main runs the background worker: it drains the audit queue into PostgreSQL and runs the
// scheduled downgrade and audit archive jobs.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/covenant-hq/church-backend/config"
	"github.com/covenant-hq/church-backend/internal/audit"
	"github.com/covenant-hq/church-backend/internal/plans"
	"github.com/covenant-hq/church-backend/internal/subscriptions"
	"github.com/covenant-hq/church-backend/internal/worker"
	"github.com/covenant-hq/church-backend/pkg/database"
	"github.com/covenant-hq/church-backend/pkg/metrics"
	"github.com/covenant-hq/church-backend/pkg/queue"
	"github.com/covenant-hq/church-backend/pkg/redis"
	"github.com/covenant-hq/church-backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolConfig{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	auditRepo := audit.NewRepository(pool)
	auditQueue := queue.NewQueue(rdb.Client, queue.QueueAudit, logger)
	processor := worker.NewAuditProcessor(auditQueue, auditRepo, m.AuditQueueDepth, logger)

	planRegistry := plans.NewCachedRegistry(plans.NewRepository(pool), rdb.Client, cfg.Billing.PlanCacheTTL, logger).
		WithLookupCounter(m.PlanCacheLookups)
	billing := subscriptions.NewService(subscriptions.NewRepository(pool), planRegistry, nil, cfg.Billing.OverageGraceDays, logger)

	scheduler := worker.NewScheduler(logger)
	if err := scheduler.Add("apply-downgrades", cfg.Billing.DowngradeSchedule, worker.DowngradeJob(billing, m.DowngradesApplied, logger)); err != nil {
		logger.Fatal("schedule", zap.Error(err))
	}

	if cfg.AWS.AuditBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			AuditBucket:     cfg.AWS.AuditBucket,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		archiver := worker.NewArchiver(auditRepo, s3Client, m.AuditArchivedTotal, logger)
		if err := scheduler.Add("archive-audit-logs", cfg.Audit.ArchiveSchedule, archiver.ArchivePreviousDay); err != nil {
			logger.Fatal("schedule", zap.Error(err))
		}
	} else {
		logger.Warn("audit archive disabled: AWS_S3_AUDIT_BUCKET not set")
	}

	metricsSrv := &http.Server{Addr: ":" + cfg.Server.WorkerMetricsPort, Handler: metrics.Handler(registry)}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	scheduler.Start()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-scheduler.Stop().Done()
	select {
	case <-done:
	case <-time.After(2 * queue.PollTimeout):
		logger.Warn("audit processor did not stop in time")
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
