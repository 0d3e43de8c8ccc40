package audit

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/permissions"
	"github.com/covenant-hq/church-backend/internal/requestctx"
	"github.com/covenant-hq/church-backend/pkg/response"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Lister reads audit logs.
type Lister interface {
	List(ctx context.Context, f Filter) ([]*models.AuditLog, int, error)
}

// Handler handles audit log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an audit log handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Page is one page of audit logs.
type Page struct {
	Logs  []*models.AuditLog `json:"logs"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// List handles GET /api/audit-logs. Church users see their active church; system users see every church
// unless they selected one.
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	f := Filter{
		Module: c.Query("module"),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if ac := requestctx.ActiveChurch(c); ac != nil {
		id := ac.ID
		f.ChurchID = &id
	} else if u := requestctx.User(c); u == nil || !permissions.IsSystemRole(string(u.Role)) {
		response.BadRequest(c, "church context required")
		return
	}

	logs, total, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list audit logs", zap.Error(err))
		response.Internal(c, "failed to list audit logs")
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	response.OK(c, Page{Logs: logs, Total: total, Page: page, Limit: limit})
}
