package churches

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/access"
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/requestctx"
	"github.com/covenant-hq/church-backend/pkg/response"
)

// ProfileStore is the church persistence the profile endpoints need.
type ProfileStore interface {
	Store
	UpdateProfile(ctx context.Context, ch *models.Church) error
	ListBranches(ctx context.Context, hqID uuid.UUID) ([]*models.Church, error)
}

// BranchCreator provisions a branch with its own subscription.
type BranchCreator interface {
	CreateBranch(ctx context.Context, hq *models.Church, branch *models.Church) error
}

// Handler handles church profile and branch endpoints.
type Handler struct {
	repo     ProfileStore
	branches BranchCreator
	logger   *zap.Logger
}

// NewHandler creates a church handler.
func NewHandler(repo ProfileStore, branches BranchCreator, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, branches: branches, logger: logger}
}

// ProfileRequest is the body for PUT /api/church.
type ProfileRequest struct {
	Name     string            `json:"name" binding:"required"`
	Type     models.ChurchType `json:"type"`
	Country  string            `json:"country"`
	State    string            `json:"state"`
	City     string            `json:"city"`
	Currency string            `json:"currency"`
}

// BranchRequest is the body for POST /api/church/branches.
type BranchRequest struct {
	Name     string `json:"name" binding:"required"`
	Country  string `json:"country"`
	State    string `json:"state"`
	City     string `json:"city"`
	Currency string `json:"currency"`
}

// Get handles GET /api/church.
func (h *Handler) Get(c *gin.Context) {
	ac := requestctx.ActiveChurch(c)
	if ac == nil {
		response.BadRequest(c, "church context required")
		return
	}
	response.OK(c, ac)
}

// Update handles PUT /api/church.
func (h *Handler) Update(c *gin.Context) {
	ac := requestctx.ActiveChurch(c)
	if ac == nil {
		response.BadRequest(c, "church context required")
		return
	}
	if !ac.CanEdit {
		response.Deny(c, access.BranchDataReadOnly())
		return
	}
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	ch := ac.Church
	ch.Name = strings.TrimSpace(req.Name)
	ch.Country = req.Country
	ch.State = req.State
	ch.City = req.City
	if req.Currency != "" {
		ch.Currency = strings.ToUpper(req.Currency)
	}
	if req.Type != "" && req.Type != ch.Type {
		if ac.IsHeadquarters() {
			branches, err := h.repo.ListBranches(ctx, ch.ID)
			if err != nil {
				h.logger.Error("list branches", zap.String("church_id", ch.ID.String()), zap.Error(err))
				response.Internal(c, "failed to update church")
				return
			}
			if len(branches) > 0 {
				response.Conflict(c, ErrHQHasBranches.Error())
				return
			}
		}
		ch.Type = req.Type
	}

	var parent *models.Church
	if ch.ParentChurch != nil {
		p, err := h.repo.GetByID(ctx, *ch.ParentChurch)
		if err != nil && !errors.Is(err, ErrNotFound) {
			h.logger.Error("load parent church", zap.Error(err))
			response.Internal(c, "failed to update church")
			return
		}
		parent = p
	}
	if err := ValidateHierarchy(&ch, parent); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.repo.UpdateProfile(ctx, &ch); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Church not found")
			return
		}
		h.logger.Error("update church", zap.String("church_id", ch.ID.String()), zap.Error(err))
		response.Internal(c, "failed to update church")
		return
	}
	response.OK(c, ch)
}

func (h *Handler) headquarters(c *gin.Context) *models.ActiveChurch {
	ac := requestctx.ActiveChurch(c)
	if ac == nil {
		response.BadRequest(c, "church context required")
		return nil
	}
	if !ac.IsHeadquarters() {
		response.Forbidden(c, "Only a headquarters church has branches")
		return nil
	}
	return ac
}

// ListBranches handles GET /api/church/branches.
func (h *Handler) ListBranches(c *gin.Context) {
	ac := h.headquarters(c)
	if ac == nil {
		return
	}
	list, err := h.repo.ListBranches(c.Request.Context(), ac.ID)
	if err != nil {
		h.logger.Error("list branches", zap.String("church_id", ac.ID.String()), zap.Error(err))
		response.Internal(c, "failed to list branches")
		return
	}
	if list == nil {
		list = []*models.Church{}
	}
	response.OK(c, list)
}

// CreateBranch handles POST /api/church/branches.
func (h *Handler) CreateBranch(c *gin.Context) {
	ac := h.headquarters(c)
	if ac == nil {
		return
	}
	if !ac.CanEdit {
		response.Deny(c, access.BranchDataReadOnly())
		return
	}
	var req BranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	branch := &models.Church{
		Name:     strings.TrimSpace(req.Name),
		Country:  req.Country,
		State:    req.State,
		City:     req.City,
		Currency: strings.ToUpper(req.Currency),
	}
	hq := ac.Church
	if err := h.branches.CreateBranch(c.Request.Context(), &hq, branch); err != nil {
		if isHierarchyError(err) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("create branch", zap.String("hq_id", hq.ID.String()), zap.Error(err))
		response.Internal(c, "failed to create branch")
		return
	}
	response.Created(c, branch)
}

func isHierarchyError(err error) bool {
	for _, target := range []error{ErrInvalidType, ErrBranchNeedsParent, ErrParentNotHQ, ErrUnexpectedParent, ErrSelfParent} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
