package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/covenant-hq/church-backend/internal/access"
	"github.com/covenant-hq/church-backend/internal/auth"
	"github.com/covenant-hq/church-backend/internal/requestctx"
	"github.com/covenant-hq/church-backend/internal/subscriptions"
)

// Identity authenticates the request and stores the principal with its permission matrix.
func (p *Pipeline) Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		user, err := p.identity.Resolve(req.Context(), auth.ExtractCredential(req), req.Method, auth.IsAdminPortal(req))
		if err != nil {
			p.abort(c, "identity", err)
			return
		}
		requestctx.SetUser(c, user)
		c.Next()
	}
}

// ActiveChurch resolves the church the request operates on from the principal and X-Church-Id.
func (p *Pipeline) ActiveChurch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var requested *uuid.UUID
		if raw := strings.TrimSpace(c.GetHeader(HeaderChurchID)); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				p.abort(c, "church", access.InvalidChurchContext())
				return
			}
			requested = &id
		}
		ac, err := p.churches.Resolve(c.Request.Context(), requestctx.User(c), requested)
		if err != nil {
			p.abort(c, "church", err)
			return
		}
		if ac != nil {
			requestctx.SetActiveChurch(c, ac)
		}
		c.Next()
	}
}

// ReadOnly rejects writes to data the principal may only view.
func (p *Pipeline) ReadOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := access.GuardReadOnly(requestctx.User(c), requestctx.ActiveChurch(c), c.Request.Method); err != nil {
			p.abort(c, "readonly", err)
			return
		}
		c.Next()
	}
}

// Subscription applies the subscription gate and exposes the resolved billing context.
func (p *Pipeline) Subscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		ac := requestctx.ActiveChurch(c)
		res, err := p.gate.Apply(c.Request.Context(), subscriptions.Request{
			User:   requestctx.User(c),
			Church: ac,
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
		})
		if res != nil {
			if ac != nil {
				ac.Modules = res.Modules
			}
			requestctx.SetSubscription(c, res.Subscription, res.EffectivePlan)
		}
		if err != nil {
			p.abort(c, "subscription", err)
			return
		}
		c.Next()
	}
}
