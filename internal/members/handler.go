package members

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/requestctx"
	"github.com/covenant-hq/church-backend/internal/subscriptions"
	"github.com/covenant-hq/church-backend/pkg/response"
)

// Store is the member persistence the handler needs.
type Store interface {
	Create(ctx context.Context, m *models.Member) error
	Get(ctx context.Context, churchID, id uuid.UUID) (*models.Member, error)
	List(ctx context.Context, churchID uuid.UUID, search string, limit, offset int) ([]*models.Member, error)
	Update(ctx context.Context, m *models.Member) error
	Delete(ctx context.Context, churchID, id uuid.UUID) error
	CountActive(ctx context.Context, churchID uuid.UUID) (int, error)
}

// OverageTracker keeps a subscription's member overage in step with the member count.
type OverageTracker interface {
	TrackOverage(ctx context.Context, churchID uuid.UUID, limit *int, memberCount int) error
}

// Handler handles member HTTP endpoints.
type Handler struct {
	repo    Store
	overage OverageTracker
	now     func() time.Time
	logger  *zap.Logger
}

// NewHandler creates a members handler.
func NewHandler(repo Store, overage OverageTracker, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, overage: overage, now: time.Now, logger: logger}
}

// MemberRequest is the body for POST and PUT /api/members.
type MemberRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Gender    string `json:"gender"`
	IsActive  *bool  `json:"is_active"`
}

func (req *MemberRequest) apply(m *models.Member) {
	m.FirstName = strings.TrimSpace(req.FirstName)
	m.LastName = strings.TrimSpace(req.LastName)
	m.Email = strings.ToLower(strings.TrimSpace(req.Email))
	m.Phone = strings.TrimSpace(req.Phone)
	m.Gender = req.Gender
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
}

func churchID(c *gin.Context) (uuid.UUID, bool) {
	ac := requestctx.ActiveChurch(c)
	if ac == nil {
		response.BadRequest(c, "church context required")
		return uuid.Nil, false
	}
	return ac.ID, true
}

func memberID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("memberId"))
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /api/members.
func (h *Handler) List(c *gin.Context) {
	church, ok := churchID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	list, err := h.repo.List(c.Request.Context(), church, strings.TrimSpace(c.Query("search")), limit, offset)
	if err != nil {
		h.logger.Error("list members", zap.Error(err))
		response.Internal(c, "failed to list members")
		return
	}
	if list == nil {
		list = []*models.Member{}
	}
	response.OK(c, list)
}

// Get handles GET /api/members/:memberId.
func (h *Handler) Get(c *gin.Context) {
	church, ok := churchID(c)
	if !ok {
		return
	}
	id, ok := memberID(c)
	if !ok {
		return
	}
	m, err := h.repo.Get(c.Request.Context(), church, id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "Member not found")
		return
	}
	if err != nil {
		h.logger.Error("get member", zap.Error(err))
		response.Internal(c, "failed to load member")
		return
	}
	response.OK(c, m)
}

// Create handles POST /api/members. Once a member overage's grace window has passed no member can be
// added until the church upgrades.
func (h *Handler) Create(c *gin.Context) {
	church, ok := churchID(c)
	if !ok {
		return
	}
	if err := subscriptions.CheckMemberOverage(requestctx.Subscription(c), h.now()); err != nil {
		response.Error(c, err, "failed to create member")
		return
	}
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "first_name and last_name required")
		return
	}
	m := &models.Member{ChurchID: church, IsActive: true}
	req.apply(m)
	if err := h.repo.Create(c.Request.Context(), m); err != nil {
		h.logger.Error("create member", zap.Error(err))
		response.Internal(c, "failed to create member")
		return
	}
	h.trackOverage(c, church)
	response.Created(c, m)
}

// Update handles PUT /api/members/:memberId.
func (h *Handler) Update(c *gin.Context) {
	church, ok := churchID(c)
	if !ok {
		return
	}
	id, ok := memberID(c)
	if !ok {
		return
	}
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "first_name and last_name required")
		return
	}
	m, err := h.repo.Get(c.Request.Context(), church, id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "Member not found")
		return
	}
	if err != nil {
		h.logger.Error("get member", zap.Error(err))
		response.Internal(c, "failed to update member")
		return
	}
	wasActive := m.IsActive
	req.apply(m)
	if err := h.repo.Update(c.Request.Context(), m); err != nil {
		h.logger.Error("update member", zap.Error(err))
		response.Internal(c, "failed to update member")
		return
	}
	if wasActive != m.IsActive {
		h.trackOverage(c, church)
	}
	response.OK(c, m)
}

// Delete handles DELETE /api/members/:memberId.
func (h *Handler) Delete(c *gin.Context) {
	church, ok := churchID(c)
	if !ok {
		return
	}
	id, ok := memberID(c)
	if !ok {
		return
	}
	err := h.repo.Delete(c.Request.Context(), church, id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "Member not found")
		return
	}
	if err != nil {
		h.logger.Error("delete member", zap.Error(err))
		response.Internal(c, "failed to delete member")
		return
	}
	h.trackOverage(c, church)
	response.OK(c, gin.H{"id": id})
}

// trackOverage recounts members against the effective plan limit. Failures are logged only; the member
// write has already succeeded.
func (h *Handler) trackOverage(c *gin.Context, church uuid.UUID) {
	plan := requestctx.EffectivePlan(c)
	if plan == nil || requestctx.Subscription(c) == nil {
		return
	}
	ctx := c.Request.Context()
	count, err := h.repo.CountActive(ctx, church)
	if err == nil {
		err = h.overage.TrackOverage(ctx, church, plan.MemberLimit, count)
	}
	if err != nil {
		h.logger.Warn("track member overage", zap.String("church_id", church.String()), zap.Error(err))
	}
}
