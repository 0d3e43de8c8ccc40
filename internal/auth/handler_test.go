package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/onboarding"
	"github.com/covenant-hq/church-backend/internal/requestctx"
	"github.com/covenant-hq/church-backend/pkg/response"
	"github.com/covenant-hq/church-backend/pkg/utils"
)

type staffStore struct {
	byEmail map[string]*models.User
}

func (s *staffStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *staffStore) ListByChurch(_ context.Context, churchID uuid.UUID) ([]models.UserPublic, error) {
	var out []models.UserPublic
	for _, u := range s.byEmail {
		if u.ChurchID != nil && *u.ChurchID == churchID {
			out = append(out, u.ToPublic())
		}
	}
	return out, nil
}

func (s *staffStore) SetActive(_ context.Context, churchID, userID uuid.UUID, active bool) error {
	for _, u := range s.byEmail {
		if u.ID == userID && u.ChurchID != nil && *u.ChurchID == churchID {
			u.IsActive = active
			return nil
		}
	}
	return ErrNotFound
}

type fakeRegistrar struct {
	got onboarding.Request
	err error
}

func (f *fakeRegistrar) Register(_ context.Context, req onboarding.Request) (*onboarding.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	church := &models.Church{ID: uuid.New(), Name: req.ChurchName, Type: models.ChurchIndependent}
	return &onboarding.Result{
		Church:       church,
		User:         &models.User{ID: uuid.New(), ChurchID: &church.ID, Email: req.Email, Role: models.RoleChurchAdmin, IsActive: true},
		Subscription: &models.Subscription{ChurchID: church.ID, Status: models.StatusTrialing},
	}, nil
}

type authEnv struct {
	router    *gin.Engine
	users     *staffStore
	registrar *fakeRegistrar
	jwt       *JWTService
	church    uuid.UUID
	admin     *models.User
	usher     *models.User
	support   *models.User
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hash, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)

	church := uuid.New()
	e := &authEnv{
		users:     &staffStore{byEmail: map[string]*models.User{}},
		registrar: &fakeRegistrar{},
		jwt:       NewJWTService("test-secret", 2),
		church:    church,
		admin:     &models.User{ID: uuid.New(), ChurchID: &church, Email: "admin@grace.org", PasswordHash: hash, Role: models.RoleChurchAdmin, IsActive: true},
		usher:     &models.User{ID: uuid.New(), ChurchID: &church, Email: "usher@grace.org", PasswordHash: hash, Role: models.RoleUsher, IsActive: true},
		support:   &models.User{ID: uuid.New(), Email: "help@platform.io", PasswordHash: hash, Role: "support_admin", IsActive: true},
	}
	for _, u := range []*models.User{e.admin, e.usher, e.support} {
		e.users.byEmail[u.Email] = u
	}

	h := NewHandler(e.users, e.jwt, e.registrar, CookieConfig{TTL: 2 * time.Hour}, zap.NewNop())
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/admin/login", h.AdminLogin)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/logout", h.Logout)

	api := r.Group("/api", func(c *gin.Context) {
		requestctx.SetUser(c, e.admin)
		requestctx.SetActiveChurch(c, &models.ActiveChurch{Church: models.Church{ID: church}, CanEdit: true})
		c.Next()
	})
	api.GET("/me", h.Me)
	api.GET("/users", h.List)
	api.PATCH("/users/:userId/status", h.UpdateStatus)
	e.router = r
	return e
}

func (e *authEnv) send(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var out response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	e := newAuthEnv(t)
	w, body := e.send(t, http.MethodPost, "/auth/login", `{"email":"admin@grace.org","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, w.Code)

	data := body.Data.(map[string]interface{})
	claims, err := e.jwt.Validate(data["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, e.admin.ID, claims.UserID)
	assert.Equal(t, ScopeChurch, claims.Scope)

	ck := cookieNamed(w, CookieToken)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, 7200, ck.MaxAge)
}

func TestLogin_WrongPassword(t *testing.T) {
	e := newAuthEnv(t)
	w, body := e.send(t, http.MethodPost, "/auth/login", `{"email":"admin@grace.org","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", body.Message)

	w, _ = e.send(t, http.MethodPost, "/auth/login", `{"email":"ghost@grace.org","password":"correct-horse"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, cookieNamed(w, CookieToken))
}

func TestAdminLogin(t *testing.T) {
	e := newAuthEnv(t)
	w, _ := e.send(t, http.MethodPost, "/auth/admin/login", `{"email":"admin@grace.org","password":"correct-horse"}`)
	assert.Equal(t, http.StatusForbidden, w.Code, "church roles cannot use the admin portal")

	w, body := e.send(t, http.MethodPost, "/auth/admin/login", `{"email":"help@platform.io","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, cookieNamed(w, CookieAdminToken))

	claims, err := e.jwt.Validate(body.Data.(map[string]interface{})["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, ScopeAdmin, claims.Scope)
	assert.Equal(t, string(models.RoleSupportAdmin), claims.Role, "legacy spelling is normalized")
}

func TestLogout(t *testing.T) {
	e := newAuthEnv(t)
	w, _ := e.send(t, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	for _, name := range []string{CookieToken, CookieAdminToken} {
		ck := cookieNamed(w, name)
		require.NotNil(t, ck, name)
		assert.Empty(t, ck.Value)
		assert.Negative(t, ck.MaxAge)
	}
}

func TestRegister(t *testing.T) {
	e := newAuthEnv(t)
	w, body := e.send(t, http.MethodPost, "/auth/register",
		`{"church_name":"Grace","full_name":"Ama","email":"ama@grace.org","password":"longenough"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Ama", e.registrar.got.AdminName)
	assert.NotNil(t, cookieNamed(w, CookieToken))
	data := body.Data.(map[string]interface{})
	assert.NotEmpty(t, data["token"])
	assert.NotNil(t, data["subscription"])

	e.registrar.err = onboarding.ErrEmailTaken
	w, _ = e.send(t, http.MethodPost, "/auth/register",
		`{"church_name":"Grace","full_name":"Ama","email":"ama@grace.org","password":"longenough"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	e.registrar.err = onboarding.ErrInvalidType
	w, _ = e.send(t, http.MethodPost, "/auth/register",
		`{"church_name":"Grace","church_type":"Branch","full_name":"Ama","email":"ama@grace.org","password":"longenough"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.send(t, http.MethodPost, "/auth/register", `{"church_name":"Grace","full_name":"Ama","email":"ama@grace.org","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe(t *testing.T) {
	e := newAuthEnv(t)
	w, body := e.send(t, http.MethodGet, "/api/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, "admin@grace.org", data["user"].(map[string]interface{})["email"])
	assert.NotEmpty(t, data["permissions"])
	assert.NotNil(t, data["active_church"])
}

func TestUsers_ListAndStatus(t *testing.T) {
	e := newAuthEnv(t)
	w, body := e.send(t, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body.Data, 2)

	w, _ = e.send(t, http.MethodPatch, "/api/users/"+e.usher.ID.String()+"/status", `{"isActive":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, e.users.byEmail["usher@grace.org"].IsActive)

	w, _ = e.send(t, http.MethodPatch, "/api/users/"+e.admin.ID.String()+"/status", `{"isActive":false}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.send(t, http.MethodPatch, "/api/users/"+e.support.ID.String()+"/status", `{"isActive":false}`)
	assert.Equal(t, http.StatusNotFound, w.Code, "accounts outside the active church are invisible")

	w, _ = e.send(t, http.MethodPatch, "/api/users/"+e.usher.ID.String()+"/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
