package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/churches"
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/onboarding"
	"github.com/covenant-hq/church-backend/internal/permissions"
	"github.com/covenant-hq/church-backend/internal/requestctx"
	"github.com/covenant-hq/church-backend/pkg/response"
	"github.com/covenant-hq/church-backend/pkg/utils"
)

// Accounts is the user persistence the auth endpoints need.
type Accounts interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListByChurch(ctx context.Context, churchID uuid.UUID) ([]models.UserPublic, error)
	SetActive(ctx context.Context, churchID, userID uuid.UUID, active bool) error
}

// Registrar onboards a new church.
type Registrar interface {
	Register(ctx context.Context, req onboarding.Request) (*onboarding.Result, error)
}

// CookieConfig controls the session cookies set on login.
type CookieConfig struct {
	Domain string
	Secure bool
	TTL    time.Duration
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	ChurchName string            `json:"church_name" binding:"required"`
	ChurchType models.ChurchType `json:"church_type"`
	Country    string            `json:"country"`
	State      string            `json:"state"`
	City       string            `json:"city"`
	Currency   string            `json:"currency"`
	FullName   string            `json:"full_name" binding:"required"`
	Email      string            `json:"email" binding:"required,email"`
	Password   string            `json:"password" binding:"required,min=8"`
}

// LoginRequest is the body for POST /auth/login and POST /auth/admin/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token        string               `json:"token"`
	User         models.UserPublic    `json:"user"`
	Church       *models.Church       `json:"church,omitempty"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// MeResponse describes the caller as the request pipeline resolved it.
type MeResponse struct {
	User          models.UserPublic    `json:"user"`
	Permissions   permissions.Matrix   `json:"permissions"`
	ActiveChurch  *models.ActiveChurch `json:"active_church,omitempty"`
	Subscription  *models.Subscription `json:"subscription,omitempty"`
	EffectivePlan *models.Plan         `json:"effective_plan,omitempty"`
}

// StatusRequest is the body for PATCH /api/users/:userId/status.
type StatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// Handler handles auth and staff account endpoints.
type Handler struct {
	users     Accounts
	jwt       *JWTService
	registrar Registrar
	cookies   CookieConfig
	logger    *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users Accounts, jwt *JWTService, registrar Registrar, cookies CookieConfig, logger *zap.Logger) *Handler {
	return &Handler{users: users, jwt: jwt, registrar: registrar, cookies: cookies, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.registrar.Register(c.Request.Context(), onboarding.Request{
		ChurchName: req.ChurchName,
		ChurchType: req.ChurchType,
		Country:    req.Country,
		State:      req.State,
		City:       req.City,
		Currency:   req.Currency,
		AdminName:  req.FullName,
		Email:      req.Email,
		Password:   req.Password,
	})
	switch {
	case errors.Is(err, onboarding.ErrEmailTaken):
		response.Conflict(c, "email already registered")
		return
	case errors.Is(err, onboarding.ErrInvalidType), errors.Is(err, onboarding.ErrInvalidInput),
		errors.Is(err, churches.ErrInvalidType), errors.Is(err, utils.ErrPasswordTooShort):
		response.BadRequest(c, err.Error())
		return
	case err != nil:
		h.logger.Error("register church", zap.Error(err))
		response.Internal(c, "failed to register church")
		return
	}

	requestctx.SetUser(c, res.User)
	token, ok := h.issue(c, res.User, ScopeChurch, CookieToken)
	if !ok {
		return
	}
	response.Created(c, TokenResponse{Token: token, User: res.User.ToPublic(), Church: res.Church, Subscription: res.Subscription})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	user, ok := h.authenticate(c)
	if !ok {
		return
	}
	token, ok := h.issue(c, user, ScopeChurch, CookieToken)
	if !ok {
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// AdminLogin handles POST /auth/admin/login. Only system roles may sign in to the admin portal.
func (h *Handler) AdminLogin(c *gin.Context) {
	user, ok := h.authenticate(c)
	if !ok {
		return
	}
	if !user.Role.IsSystem() {
		response.Forbidden(c, "admin access required")
		return
	}
	token, ok := h.issue(c, user, ScopeAdmin, CookieAdminToken)
	if !ok {
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Logout handles POST /auth/logout by expiring both session cookies.
func (h *Handler) Logout(c *gin.Context) {
	for _, name := range []string{CookieToken, CookieAdminToken} {
		c.SetCookie(name, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	}
	response.OK(c, gin.H{"logged_out": true})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	user := requestctx.User(c)
	if user == nil {
		response.Unauthorized(c, "Not authorized")
		return
	}
	response.OK(c, MeResponse{
		User:          user.ToPublic(),
		Permissions:   requestctx.Permissions(c),
		ActiveChurch:  requestctx.ActiveChurch(c),
		Subscription:  requestctx.Subscription(c),
		EffectivePlan: requestctx.EffectivePlan(c),
	})
}

// List handles GET /api/users: the staff accounts of the active church.
func (h *Handler) List(c *gin.Context) {
	ac := requestctx.ActiveChurch(c)
	if ac == nil {
		response.BadRequest(c, "church context required")
		return
	}
	list, err := h.users.ListByChurch(c.Request.Context(), ac.ID)
	if err != nil {
		h.logger.Error("list users", zap.String("church_id", ac.ID.String()), zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	if list == nil {
		list = []models.UserPublic{}
	}
	response.OK(c, list)
}

// UpdateStatus handles PATCH /api/users/:userId/status. Accounts are deactivated, never deleted.
func (h *Handler) UpdateStatus(c *gin.Context) {
	ac := requestctx.ActiveChurch(c)
	if ac == nil {
		response.BadRequest(c, "church context required")
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if me := requestctx.User(c); me != nil && me.ID == userID && !*req.IsActive {
		response.BadRequest(c, "you cannot deactivate your own account")
		return
	}
	err = h.users.SetActive(c.Request.Context(), ac.ID, userID, *req.IsActive)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("set user status", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to update user")
		return
	}
	response.OK(c, gin.H{"id": userID, "is_active": *req.IsActive})
}

func (h *Handler) authenticate(c *gin.Context) (*models.User, bool) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return nil, false
	}
	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Error("load user for login", zap.Error(err))
		response.Internal(c, "failed to sign in")
		return nil, false
	}
	if user == nil || !utils.CheckPassword(req.Password, user.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return nil, false
	}
	user.Role = permissions.NormalizeRole(string(user.Role))
	requestctx.SetUser(c, user)
	return user, true
}

func (h *Handler) issue(c *gin.Context, user *models.User, scope, cookie string) (string, bool) {
	token, err := h.jwt.Generate(user.ID, string(user.Role), scope)
	if err != nil {
		h.logger.Error("sign token", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return "", false
	}
	maxAge := int(h.cookies.TTL / time.Second)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie, token, maxAge, "/", h.cookies.Domain, h.cookies.Secure, true)
	return token, true
}
