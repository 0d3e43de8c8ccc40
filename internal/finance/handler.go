package finance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/requestctx"
	"github.com/covenant-hq/church-backend/pkg/response"
)

const dateLayout = "2006-01-02"

// Store is the ledger persistence the handlers need.
type Store interface {
	Create(ctx context.Context, e *models.FinanceEntry) error
	Get(ctx context.Context, churchID uuid.UUID, category string, id uuid.UUID) (*models.FinanceEntry, error)
	List(ctx context.Context, churchID uuid.UUID, category string, from, to time.Time) ([]*models.FinanceEntry, error)
	Update(ctx context.Context, e *models.FinanceEntry) error
	Delete(ctx context.Context, churchID uuid.UUID, category string, id uuid.UUID) error
	Totals(ctx context.Context, churchID uuid.UUID, from, to time.Time) ([]Total, error)
}

// Handler serves one ledger category.
type Handler struct {
	repo     Store
	category Category
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler creates a ledger handler for category.
func NewHandler(repo Store, category Category, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, category: category, now: time.Now, logger: logger}
}

// EntryRequest is the body for creating or updating a ledger entry.
type EntryRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	EntryDate   string `json:"entry_date"`
	MemberID    string `json:"member_id"`
}

func (req *EntryRequest) apply(e *models.FinanceEntry, fallbackCurrency string, today time.Time) error {
	e.AmountCents = req.AmountCents
	e.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if e.Currency == "" {
		e.Currency = fallbackCurrency
	}
	e.Description = strings.TrimSpace(req.Description)
	e.EntryDate = today
	if req.EntryDate != "" {
		d, err := time.Parse(dateLayout, req.EntryDate)
		if err != nil {
			return errors.New("entry_date must be YYYY-MM-DD")
		}
		e.EntryDate = d
	}
	e.MemberID = nil
	if req.MemberID != "" {
		id, err := uuid.Parse(req.MemberID)
		if err != nil {
			return errors.New("invalid member_id")
		}
		e.MemberID = &id
	}
	return nil
}

func activeChurch(c *gin.Context) *models.ActiveChurch {
	ac := requestctx.ActiveChurch(c)
	if ac == nil {
		response.BadRequest(c, "church context required")
	}
	return ac
}

func entryID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		response.BadRequest(c, "invalid entry id")
		return uuid.Nil, false
	}
	return id, true
}

// period reads from/to query dates, defaulting to the current calendar year.
func period(c *gin.Context, now time.Time) (time.Time, time.Time, bool) {
	from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	for _, q := range []struct {
		key string
		dst *time.Time
	}{{"from", &from}, {"to", &to}} {
		if raw := c.Query(q.key); raw != "" {
			d, err := time.Parse(dateLayout, raw)
			if err != nil {
				response.BadRequest(c, q.key+" must be YYYY-MM-DD")
				return time.Time{}, time.Time{}, false
			}
			*q.dst = d
		}
	}
	if to.Before(from) {
		response.BadRequest(c, "from must not be after to")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// List handles GET on the ledger route.
func (h *Handler) List(c *gin.Context) {
	ac := activeChurch(c)
	if ac == nil {
		return
	}
	from, to, ok := period(c, h.now())
	if !ok {
		return
	}
	list, err := h.repo.List(c.Request.Context(), ac.ID, h.category.Name, from, to)
	if err != nil {
		h.logger.Error("list finance entries", zap.String("category", h.category.Name), zap.Error(err))
		response.Internal(c, "failed to list entries")
		return
	}
	if list == nil {
		list = []*models.FinanceEntry{}
	}
	response.OK(c, list)
}

// Create handles POST on the ledger route.
func (h *Handler) Create(c *gin.Context) {
	ac := activeChurch(c)
	if ac == nil {
		return
	}
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "amount_cents must be a positive integer")
		return
	}
	e := &models.FinanceEntry{ChurchID: ac.ID, Category: h.category.Name, RecordedBy: requestctx.User(c).ID}
	if err := req.apply(e, ac.Currency, h.today()); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if e.Currency == "" {
		response.BadRequest(c, "currency required")
		return
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create finance entry", zap.String("category", h.category.Name), zap.Error(err))
		response.Internal(c, "failed to create entry")
		return
	}
	response.Created(c, e)
}

// Update handles PUT on the ledger entry route.
func (h *Handler) Update(c *gin.Context) {
	ac := activeChurch(c)
	if ac == nil {
		return
	}
	id, ok := entryID(c)
	if !ok {
		return
	}
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "amount_cents must be a positive integer")
		return
	}
	e, err := h.repo.Get(c.Request.Context(), ac.ID, h.category.Name, id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "Entry not found")
		return
	}
	if err != nil {
		h.logger.Error("get finance entry", zap.Error(err))
		response.Internal(c, "failed to update entry")
		return
	}
	if err := req.apply(e, e.Currency, e.EntryDate); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.Update(c.Request.Context(), e); err != nil {
		h.logger.Error("update finance entry", zap.Error(err))
		response.Internal(c, "failed to update entry")
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE on the ledger entry route.
func (h *Handler) Delete(c *gin.Context) {
	ac := activeChurch(c)
	if ac == nil {
		return
	}
	id, ok := entryID(c)
	if !ok {
		return
	}
	err := h.repo.Delete(c.Request.Context(), ac.ID, h.category.Name, id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "Entry not found")
		return
	}
	if err != nil {
		h.logger.Error("delete finance entry", zap.Error(err))
		response.Internal(c, "failed to delete entry")
		return
	}
	response.OK(c, gin.H{"id": id})
}

func (h *Handler) today() time.Time {
	y, m, d := h.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StatementHandler serves the read-only financial statement.
type StatementHandler struct {
	repo   Store
	now    func() time.Time
	logger *zap.Logger
}

// NewStatementHandler creates a financial statement handler.
func NewStatementHandler(repo Store, logger *zap.Logger) *StatementHandler {
	return &StatementHandler{repo: repo, now: time.Now, logger: logger}
}

// Get handles GET /api/financial-statement.
func (h *StatementHandler) Get(c *gin.Context) {
	ac := activeChurch(c)
	if ac == nil {
		return
	}
	from, to, ok := period(c, h.now())
	if !ok {
		return
	}
	totals, err := h.repo.Totals(c.Request.Context(), ac.ID, from, to)
	if err != nil {
		h.logger.Error("financial statement", zap.Error(err))
		response.Internal(c, "failed to build statement")
		return
	}
	st := BuildStatement(totals)
	st.From, st.To = from.Format(dateLayout), to.Format(dateLayout)
	response.OK(c, st)
}
