package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/access"
	"github.com/covenant-hq/church-backend/internal/audit"
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/subscriptions"
	"github.com/covenant-hq/church-backend/pkg/metrics"
	"github.com/covenant-hq/church-backend/pkg/response"
)

// HeaderChurchID selects the church a request operates on.
const HeaderChurchID = "X-Church-Id"

// IdentityResolver resolves the request credential into a principal.
type IdentityResolver interface {
	Resolve(ctx context.Context, token, method string, adminPortal bool) (*models.User, error)
}

// ChurchResolver resolves the church a principal operates on.
type ChurchResolver interface {
	Resolve(ctx context.Context, user *models.User, requested *uuid.UUID) (*models.ActiveChurch, error)
}

// SubscriptionGate applies billing rules to a request.
type SubscriptionGate interface {
	Apply(ctx context.Context, req subscriptions.Request) (*subscriptions.Result, error)
}

// Pipeline composes the request stages every protected route runs through.
type Pipeline struct {
	identity IdentityResolver
	churches ChurchResolver
	gate     SubscriptionGate
	recorder *audit.Recorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// PipelineDeps are the collaborators of a Pipeline. Recorder and Metrics may be nil.
type PipelineDeps struct {
	Identity IdentityResolver
	Churches ChurchResolver
	Gate     SubscriptionGate
	Recorder *audit.Recorder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// NewPipeline creates a request pipeline.
func NewPipeline(d PipelineDeps) *Pipeline {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop()
	}
	return &Pipeline{
		identity: d.Identity,
		churches: d.Churches,
		gate:     d.Gate,
		recorder: d.Recorder,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
}

// Protected returns the stages of a protected route in their fixed order: audit observer, identity,
// active church, read-only guard, subscription gate. Route-level role checks go after these.
func (p *Pipeline) Protected() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		p.Audit(),
		p.Identity(),
		p.ActiveChurch(),
		p.ReadOnly(),
		p.Subscription(),
	}
}

// abort ends the request. Denials keep their status and flags; anything else is an unexpected failure.
func (p *Pipeline) abort(c *gin.Context, stage string, err error) {
	if d, ok := access.AsDenial(err); ok {
		p.logger.Info("request denied",
			zap.String("stage", stage),
			zap.String("kind", string(d.Kind)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		p.metrics.DenialsTotal.WithLabelValues(string(d.Kind)).Inc()
		response.Deny(c, d)
		c.Abort()
		return
	}
	p.logger.Error("request stage failed",
		zap.String("stage", stage),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	response.Internal(c, "Internal server error")
	c.Abort()
}
