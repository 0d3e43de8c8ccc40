// Package main runs the church platform HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/covenant-hq/church-backend/config"
	"github.com/covenant-hq/church-backend/internal/audit"
	"github.com/covenant-hq/church-backend/internal/auth"
	"github.com/covenant-hq/church-backend/internal/churches"
	"github.com/covenant-hq/church-backend/internal/finance"
	"github.com/covenant-hq/church-backend/internal/members"
	"github.com/covenant-hq/church-backend/internal/middleware"
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/onboarding"
	"github.com/covenant-hq/church-backend/internal/permissions"
	"github.com/covenant-hq/church-backend/internal/plans"
	"github.com/covenant-hq/church-backend/internal/subscriptions"
	"github.com/covenant-hq/church-backend/pkg/database"
	"github.com/covenant-hq/church-backend/pkg/metrics"
	"github.com/covenant-hq/church-backend/pkg/queue"
	"github.com/covenant-hq/church-backend/pkg/redis"
	"github.com/covenant-hq/church-backend/pkg/response"
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
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Repositories
	userRepo := auth.NewRepository(pool)
	churchRepo := churches.NewRepository(pool)
	subRepo := subscriptions.NewRepository(pool)
	memberRepo := members.NewRepository(pool)
	ledgerRepo := finance.NewRepository(pool)
	auditRepo := audit.NewRepository(pool)
	planRegistry := plans.NewCachedRegistry(plans.NewRepository(pool), rdb.Client, cfg.Billing.PlanCacheTTL, logger).
		WithLookupCounter(m.PlanCacheLookups)
	// Plans change only through migrations, so cached entries from the previous release are dropped.
	if err := planRegistry.Invalidate(ctx); err != nil {
		logger.Warn("invalidate plan cache", zap.Error(err))
	}

	// Billing
	gate := subscriptions.NewGate(subRepo, planRegistry, subscriptions.GateConfig{
		MissingSubscriptionPolicy: cfg.Billing.MissingSubscriptionPolicy,
	})
	billing := subscriptions.NewService(subRepo, planRegistry, nil, cfg.Billing.OverageGraceDays, logger)

	// Onboarding writes a church, its admin and its subscription in one transaction.
	runner := onboarding.NewPgxRunner(pool, func(tx pgx.Tx) onboarding.Stores {
		return onboarding.Stores{
			Churches:      churchRepo.WithTx(tx),
			Users:         userRepo.WithTx(tx),
			Subscriptions: subRepo.WithTx(tx),
		}
	})
	onboard := onboarding.NewService(runner, userRepo, planRegistry, cfg.Billing.TrialDays, logger)

	// Audit records are queued in Redis and persisted by the worker.
	auditQueue := queue.NewQueue(rdb.Client, queue.QueueAudit, logger)
	recorder := audit.NewRecorder(audit.NewQueueSink(auditQueue), cfg.Audit.WriteTimeout, m.AuditRecordsTotal, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	pipeline := middleware.NewPipeline(middleware.PipelineDeps{
		Identity: auth.NewIdentityResolver(jwtService, userRepo),
		Churches: churches.NewResolver(churchRepo),
		Gate:     gate,
		Recorder: recorder,
		Metrics:  m,
		Logger:   logger,
	})

	authHandler := auth.NewHandler(userRepo, jwtService, onboard, auth.CookieConfig{
		Domain: cfg.Server.CookieDomain,
		Secure: cfg.Server.CookieSecure,
		TTL:    time.Duration(cfg.JWT.ExpireHours) * time.Hour,
	}, logger)
	churchHandler := churches.NewHandler(churchRepo, onboard, logger)
	memberHandler := members.NewHandler(memberRepo, billing, logger)
	billingHandler := subscriptions.NewHandler(billing, gate, planRegistry, logger)
	statementHandler := finance.NewStatementHandler(ledgerRepo, logger)
	auditHandler := audit.NewHandler(auditRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(m.Middleware())

	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(hctx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(hctx); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))

	// Auth: public endpoints are still audited (login, register, logout).
	authGroup := router.Group("/auth", pipeline.Audit())
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/admin/login", authHandler.AdminLogin)
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/logout", authHandler.Logout)
	}
	router.GET("/auth/me", append(pipeline.Protected(), authHandler.Me)...)

	api := router.Group("/api", pipeline.Protected()...)
	{
		// Church profile and branches
		api.GET("/church", churchHandler.Get)
		api.PUT("/church", pipeline.RequirePermission(permissions.ModuleSettings), churchHandler.Update)
		api.GET("/church/branches", pipeline.RequirePermission(permissions.ModuleBranches), churchHandler.ListBranches)
		api.POST("/church/branches", pipeline.RequirePermission(permissions.ModuleBranches), churchHandler.CreateBranch)

		// Staff accounts
		usersPerm := pipeline.RequirePermission(permissions.ModuleUsers)
		api.GET("/users", usersPerm, authHandler.List)
		api.PATCH("/users/:userId/status", usersPerm, authHandler.UpdateStatus)

		// Members
		membersPerm := pipeline.RequirePermission(permissions.ModuleMembers)
		api.GET("/members", membersPerm, memberHandler.List)
		api.POST("/members", membersPerm, memberHandler.Create)
		api.GET("/members/:memberId", membersPerm, memberHandler.Get)
		api.PUT("/members/:memberId", membersPerm, memberHandler.Update)
		api.DELETE("/members/:memberId", membersPerm, memberHandler.Delete)

		// Finance ledgers, one route prefix per category
		for _, category := range finance.Categories {
			h := finance.NewHandler(ledgerRepo, category, logger)
			perm := pipeline.RequirePermission(category.Module)
			api.GET(category.Route, perm, h.List)
			api.POST(category.Route, perm, h.Create)
			api.PUT(category.Route+"/:entryId", perm, h.Update)
			api.DELETE(category.Route+"/:entryId", perm, h.Delete)
		}
		api.GET("/financial-statement", pipeline.RequirePermission(permissions.ModuleFinancialStatement), statementHandler.Get)

		// Billing
		billingPerm := pipeline.RequirePermission(permissions.ModuleBilling)
		api.GET("/billing/subscription", billingPerm, billingHandler.GetSubscription)
		api.GET("/billing/plans", billingPerm, billingHandler.ListPlans)
		api.POST("/billing/change-plan", billingPerm, billingHandler.ChangePlan)
		api.POST("/billing/cancel", billingPerm, billingHandler.Cancel)
		api.POST("/billing/pause", billingPerm, billingHandler.Pause)
		api.POST("/billing/resume", billingPerm, billingHandler.Resume)

		// Audit trail
		api.GET("/audit-logs",
			pipeline.RequireRole(models.RoleChurchAdmin, models.RoleSuperAdmin, models.RoleSupportAdmin),
			pipeline.RequirePermission(permissions.ModuleAuditLogs),
			auditHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	recorder.Wait()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
