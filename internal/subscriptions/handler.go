package subscriptions

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/plans"
	"github.com/covenant-hq/church-backend/internal/requestctx"
	"github.com/covenant-hq/church-backend/pkg/response"
)

// PlanLister lists the plans a church can choose from.
type PlanLister interface {
	ListActive(ctx context.Context) ([]*models.Plan, error)
}

// Handler handles billing HTTP endpoints.
type Handler struct {
	svc    *Service
	gate   *Gate
	plans  PlanLister
	logger *zap.Logger
}

// NewHandler creates a billing handler.
func NewHandler(svc *Service, gate *Gate, plans PlanLister, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, gate: gate, plans: plans, logger: logger}
}

// ChangePlanRequest is the body for POST /api/billing/change-plan.
type ChangePlanRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// SubscriptionView is the billing summary of the active church.
type SubscriptionView struct {
	Subscription  *models.Subscription     `json:"subscription"`
	EffectivePlan *models.Plan             `json:"effective_plan,omitempty"`
	Modules       *models.ModuleVisibility `json:"modules,omitempty"`
	Locked        bool                     `json:"locked"`
	Trial         bool                     `json:"trial"`
	GraceExpired  bool                     `json:"member_grace_expired"`
}

func (h *Handler) church(c *gin.Context) *models.ActiveChurch {
	ac := requestctx.ActiveChurch(c)
	if ac == nil {
		response.BadRequest(c, "church context required")
	}
	return ac
}

// GetSubscription handles GET /api/billing/subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	ac := h.church(c)
	if ac == nil {
		return
	}
	sub, err := h.svc.Get(c.Request.Context(), ac.ID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "No subscription found for this church")
		return
	}
	if err != nil {
		h.logger.Error("load subscription", zap.String("church_id", ac.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load subscription")
		return
	}
	view := SubscriptionView{Subscription: sub, Modules: ac.Modules, EffectivePlan: requestctx.EffectivePlan(c)}
	if view.EffectivePlan == nil {
		if view.EffectivePlan, err = h.gate.EffectivePlan(c.Request.Context(), sub); err != nil {
			h.logger.Warn("resolve effective plan", zap.Error(err))
		}
	}
	now := h.gate.now()
	view.Locked, view.Trial = Expired(sub, now)
	view.GraceExpired = CheckMemberOverage(sub, now) != nil
	response.OK(c, view)
}

// ListPlans handles GET /api/billing/plans.
func (h *Handler) ListPlans(c *gin.Context) {
	list, err := h.plans.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("list plans", zap.Error(err))
		response.Internal(c, "failed to list plans")
		return
	}
	response.OK(c, list)
}

// ChangePlan handles POST /api/billing/change-plan.
func (h *Handler) ChangePlan(c *gin.Context) {
	ac := h.church(c)
	if ac == nil {
		return
	}
	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "plan_id required")
		return
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		response.BadRequest(c, "invalid plan id")
		return
	}
	res, err := h.svc.ChangePlan(c.Request.Context(), &ac.Church, planID)
	if err != nil {
		h.fail(c, ac.ID, "change plan", err)
		return
	}
	response.OK(c, res)
}

// Cancel handles POST /api/billing/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, "cancel", h.svc.Cancel)
}

// Pause handles POST /api/billing/pause.
func (h *Handler) Pause(c *gin.Context) {
	h.transition(c, "pause", h.svc.Pause)
}

// Resume handles POST /api/billing/resume.
func (h *Handler) Resume(c *gin.Context) {
	h.transition(c, "resume", h.svc.Resume)
}

func (h *Handler) transition(c *gin.Context, op string, fn func(context.Context, uuid.UUID) (*models.Subscription, error)) {
	ac := h.church(c)
	if ac == nil {
		return
	}
	sub, err := fn(c.Request.Context(), ac.ID)
	if err != nil {
		h.fail(c, ac.ID, op, err)
		return
	}
	response.OK(c, sub)
}

func (h *Handler) fail(c *gin.Context, churchID uuid.UUID, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "No subscription found for this church")
	case errors.Is(err, plans.ErrNotFound):
		response.NotFound(c, "Plan not found")
	case errors.Is(err, ErrVersionConflict):
		response.Conflict(c, "Subscription was updated concurrently, please retry")
	default:
		if !response.Error(c, err, "failed to update subscription") {
			h.logger.Error(op, zap.String("church_id", churchID.String()), zap.Error(err))
		}
	}
}
