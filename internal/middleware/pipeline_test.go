package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/church-backend/internal/audit"
	"github.com/covenant-hq/church-backend/internal/auth"
	"github.com/covenant-hq/church-backend/internal/churches"
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/permissions"
	"github.com/covenant-hq/church-backend/internal/plans"
	"github.com/covenant-hq/church-backend/internal/requestctx"
	"github.com/covenant-hq/church-backend/internal/subscriptions"
	"github.com/covenant-hq/church-backend/pkg/metrics"
	"github.com/covenant-hq/church-backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type userStore map[uuid.UUID]*models.User

func (s userStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type churchStore struct {
	byID map[uuid.UUID]*models.Church
	err  error
}

func (s *churchStore) GetByID(_ context.Context, id uuid.UUID) (*models.Church, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch, ok := s.byID[id]
	if !ok {
		return nil, churches.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

type subStore map[uuid.UUID]*models.Subscription

func (s subStore) GetByChurch(_ context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, ok := s[id]
	if !ok {
		return nil, subscriptions.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}
func (s subStore) Create(context.Context, *models.Subscription) error { return nil }
func (s subStore) Update(context.Context, *models.Subscription) error { return nil }
func (s subStore) ListDueDowngrades(context.Context, time.Time) ([]*models.Subscription, error) {
	return nil, nil
}

type planStore map[uuid.UUID]*models.Plan

func (s planStore) GetByID(_ context.Context, id uuid.UUID) (*models.Plan, error) {
	p, ok := s[id]
	if !ok {
		return nil, plans.ErrNotFound
	}
	return p, nil
}

func (s planStore) GetActiveByName(_ context.Context, name string) (*models.Plan, error) {
	for _, p := range s {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, plans.ErrNotFound
}

type auditSink struct {
	mu      sync.Mutex
	entries []*models.AuditLog
	err     error
}

func (s *auditSink) Write(_ context.Context, e *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

type fixture struct {
	router   *gin.Engine
	jwt      *auth.JWTService
	users    userStore
	churches *churchStore
	sink     *auditSink
	recorder *audit.Recorder
	metrics  *metrics.Metrics

	hq, branch, independent *models.Church
	hqAdmin, branchAdmin    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		jwt:     auth.NewJWTService("test-secret", 1),
		users:   userStore{},
		sink:    &auditSink{},
		metrics: metrics.Nop(),
	}
	f.hq = &models.Church{ID: uuid.New(), Name: "Grace HQ", Type: models.ChurchHeadquarters}
	f.branch = &models.Church{ID: uuid.New(), Name: "Grace East", Type: models.ChurchBranch, ParentChurch: &f.hq.ID}
	f.independent = &models.Church{ID: uuid.New(), Name: "Hope", Type: models.ChurchIndependent}
	f.churches = &churchStore{byID: map[uuid.UUID]*models.Church{
		f.hq.ID: f.hq, f.branch.ID: f.branch, f.independent.ID: f.independent,
	}}

	standard := &models.Plan{ID: uuid.New(), Name: models.PlanStandard, IsActive: true}
	basic := &models.Plan{ID: uuid.New(), Name: models.PlanBasic, IsActive: true}
	premium := &models.Plan{ID: uuid.New(), Name: models.PlanPremium, IsActive: true}
	planReg := planStore{standard.ID: standard, basic.ID: basic, premium.ID: premium}

	past := time.Now().Add(-48 * time.Hour)
	subs := subStore{
		f.hq.ID:          {ChurchID: f.hq.ID, PlanID: standard.ID, Status: models.StatusActive},
		f.branch.ID:      {ChurchID: f.branch.ID, PlanID: standard.ID, Status: models.StatusTrialing, TrialEnd: &past},
		f.independent.ID: {ChurchID: f.independent.ID, PlanID: basic.ID, Status: models.StatusActive},
	}

	f.hqAdmin = f.addUser(models.RoleChurchAdmin, &f.hq.ID)
	f.branchAdmin = f.addUser(models.RoleChurchAdmin, &f.branch.ID)

	f.recorder = audit.NewRecorder(f.sink, time.Second, f.metrics.AuditRecordsTotal, nil)
	p := NewPipeline(PipelineDeps{
		Identity: auth.NewIdentityResolver(f.jwt, f.users),
		Churches: churches.NewResolver(f.churches),
		Gate:     subscriptions.NewGate(subs, planReg, subscriptions.GateConfig{}),
		Recorder: f.recorder,
		Metrics:  f.metrics,
	})

	ok := func(c *gin.Context) {
		ac := requestctx.ActiveChurch(c)
		response.OK(c, gin.H{"active": ac})
	}
	r := gin.New()
	api := r.Group("/api", p.Protected()...)
	api.GET("/members", p.RequirePermission(permissions.ModuleMembers), ok)
	api.POST("/members", p.RequirePermission(permissions.ModuleMembers), ok)
	api.PATCH("/members/:memberId", p.RequirePermission(permissions.ModuleMembers), ok)
	api.POST("/tithes", p.RequirePermission(permissions.ModuleTithe), ok)
	api.POST("/billing/change-plan", ok)
	api.GET("/admin/churches", p.RequireRole(models.RoleSuperAdmin), ok)
	f.router = r
	return f
}

func (f *fixture) addUser(role models.Role, church *uuid.UUID) *models.User {
	u := &models.User{ID: uuid.New(), ChurchID: church, Role: role, IsActive: true, FullName: string(role)}
	f.users[u.ID] = u
	return u
}

func (f *fixture) token(t *testing.T, u *models.User, scope string) string {
	t.Helper()
	tok, err := f.jwt.Generate(u.ID, string(u.Role), scope)
	require.NoError(t, err)
	return tok
}

type call struct {
	method  string
	path    string
	user    *models.User
	church  string
	body    string
	headers map[string]string
	scope   string
}

func (f *fixture) do(t *testing.T, c call) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	req.Header.Set("Content-Type", "application/json")
	if c.user != nil {
		scope := c.scope
		if scope == "" {
			scope = auth.ScopeChurch
			if c.headers[auth.HeaderClientApp] == auth.ClientAdminPortal {
				scope = auth.ScopeAdmin
			}
		}
		req.Header.Set("Authorization", "Bearer "+f.token(t, c.user, scope))
	}
	if c.church != "" {
		req.Header.Set(HeaderChurchID, c.church)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestPipeline_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, call{method: http.MethodGet, path: "/api/members"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, body.Success)
}

func TestPipeline_HomeChurchRead(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, call{method: http.MethodGet, path: "/api/members", user: f.hqAdmin})
	require.Equal(t, http.StatusOK, w.Code)

	data := body.Data.(map[string]interface{})["active"].(map[string]interface{})
	assert.Equal(t, f.hq.ID.String(), data["id"])
	assert.Equal(t, true, data["can_edit"])
	modules := data["modules"].(map[string]interface{})
	assert.Equal(t, true, modules["tithe"])
	assert.Equal(t, false, modules["branches"])
}

func TestPipeline_HQViewsBranchReadOnly(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, call{method: http.MethodGet, path: "/api/members", user: f.hqAdmin, church: f.branch.ID.String()})
	require.Equal(t, http.StatusOK, w.Code)
	data := body.Data.(map[string]interface{})["active"].(map[string]interface{})
	assert.Equal(t, f.branch.ID.String(), data["id"])
	assert.Equal(t, false, data["can_edit"])
}

func TestPipeline_BranchReadOnlyBeatsExpiredSubscription(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, call{method: http.MethodPost, path: "/api/members", user: f.hqAdmin, church: f.branch.ID.String(), body: `{}`})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Branch data is read-only", body.Message)
	assert.True(t, body.ReadOnly)
	assert.False(t, body.Locked)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DenialsTotal.WithLabelValues("BranchDataReadOnly")))
}

func TestPipeline_ExpiredTrialLocksWrites(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, call{method: http.MethodPost, path: "/api/members", user: f.branchAdmin, body: `{}`})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.True(t, body.Locked)
	assert.True(t, body.ReadOnly)
	assert.Contains(t, body.Message, "free trial")

	w, _ = f.do(t, call{method: http.MethodGet, path: "/api/members", user: f.branchAdmin})
	assert.Equal(t, http.StatusOK, w.Code, "reads stay open")

	w, _ = f.do(t, call{method: http.MethodPost, path: "/api/billing/change-plan", user: f.branchAdmin, body: `{}`})
	assert.Equal(t, http.StatusOK, w.Code, "payment paths stay open")
}

func TestPipeline_ForeignBranchSwitch(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, call{method: http.MethodGet, path: "/api/members", user: f.hqAdmin, church: f.independent.ID.String()})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, call{method: http.MethodGet, path: "/api/members", user: f.hqAdmin, church: uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body := f.do(t, call{method: http.MethodGet, path: "/api/members", user: f.hqAdmin, church: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid church id", body.Message)
}

func TestPipeline_SupportAdminIsReadOnly(t *testing.T) {
	f := newFixture(t)
	support := f.addUser(models.RoleSupportAdmin, nil)

	w, body := f.do(t, call{method: http.MethodPost, path: "/api/members", user: support, body: `{}`})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, body.ReadOnly)

	w, _ = f.do(t, call{method: http.MethodGet, path: "/api/members", user: support, church: f.branch.ID.String()})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPipeline_ChurchRoleWithoutHomeChurchCannotSwitch(t *testing.T) {
	f := newFixture(t)
	orphan := f.addUser(models.RoleChurchAdmin, nil)

	w, body := f.do(t, call{method: http.MethodPost, path: "/api/members", user: orphan, church: f.hq.ID.String(), body: `{}`})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, body.Success)
	assert.Nil(t, body.Data)

	w, _ = f.do(t, call{method: http.MethodGet, path: "/api/members", user: orphan})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPipeline_SuperAdminBypassesBilling(t *testing.T) {
	f := newFixture(t)
	super := f.addUser(models.RoleSuperAdmin, nil)

	w, _ := f.do(t, call{method: http.MethodPost, path: "/api/members", user: super, church: f.branch.ID.String(), body: `{}`})
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, call{method: http.MethodPost, path: "/api/tithes", user: super, church: f.independent.ID.String(), body: `{}`})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPipeline_BasicPlanFinanceBlocked(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(models.RoleChurchAdmin, &f.independent.ID)
	w, body := f.do(t, call{method: http.MethodPost, path: "/api/tithes", user: admin, body: `{}`})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, body.Message, "not included")
}

func TestPipeline_DeactivatedUser(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(models.RoleChurchAdmin, &f.hq.ID)
	u.IsActive = false

	w, body := f.do(t, call{method: http.MethodPost, path: "/api/members", user: u, body: `{}`})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, body.ReadOnly)
	w, _ = f.do(t, call{method: http.MethodGet, path: "/api/members", user: u})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPipeline_StoreFailureIs500(t *testing.T) {
	f := newFixture(t)
	f.churches.err = errors.New("connection reset")
	w, body := f.do(t, call{method: http.MethodGet, path: "/api/members", user: f.hqAdmin})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, body.ReadOnly)
	assert.NotContains(t, body.Message, "connection reset")
}

func TestRequirePermission(t *testing.T) {
	f := newFixture(t)
	usher := f.addUser(models.RoleUsher, &f.hq.ID)
	w, _ := f.do(t, call{method: http.MethodGet, path: "/api/members", user: usher})
	assert.Equal(t, http.StatusOK, w.Code)
	w, body := f.do(t, call{method: http.MethodPost, path: "/api/members", user: usher, body: `{}`})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "insufficient permissions", body.Message)
}

func TestRequireRole_AdminPortalSupport(t *testing.T) {
	f := newFixture(t)
	support := f.addUser(models.RoleSupportAdmin, nil)

	w, _ := f.do(t, call{method: http.MethodGet, path: "/api/admin/churches", user: support})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, call{method: http.MethodGet, path: "/api/admin/churches", user: support,
		headers: map[string]string{auth.HeaderClientApp: auth.ClientAdminPortal}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPipeline_TokenScopeMatchesClient(t *testing.T) {
	f := newFixture(t)
	support := f.addUser(models.RoleSupportAdmin, nil)
	portal := map[string]string{auth.HeaderClientApp: auth.ClientAdminPortal}

	w, _ := f.do(t, call{method: http.MethodGet, path: "/api/members", user: f.hqAdmin, scope: auth.ScopeAdmin})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "admin token in the church app")

	w, _ = f.do(t, call{method: http.MethodGet, path: "/api/admin/churches", user: support, headers: portal, scope: auth.ScopeChurch})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "church token in the admin portal")

	w, _ = f.do(t, call{method: http.MethodGet, path: "/api/admin/churches", user: support, headers: portal})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAudit_RecordsMutations(t *testing.T) {
	f := newFixture(t)
	f.do(t, call{method: http.MethodGet, path: "/api/members", user: f.hqAdmin})
	f.do(t, call{method: http.MethodPatch, path: "/api/members/m-7", user: f.hqAdmin, body: `{"isActive":false}`})
	f.do(t, call{method: http.MethodPost, path: "/api/members", user: f.branchAdmin, body: `{}`})
	f.recorder.Wait()

	require.Len(t, f.sink.entries, 2, "reads are not audited")
	byAction := map[string]*models.AuditLog{}
	for _, e := range f.sink.entries {
		byAction[e.Action] = e
	}

	deactivate := byAction["Deactivate"]
	require.NotNil(t, deactivate)
	assert.Equal(t, "Members", deactivate.Module)
	assert.Equal(t, "m-7", deactivate.ResourceID)
	assert.Equal(t, f.hq.ID, *deactivate.ChurchID)
	assert.Equal(t, models.AuditSuccess, deactivate.Status)

	create := byAction["Create"]
	require.NotNil(t, create)
	assert.Equal(t, http.StatusPaymentRequired, create.StatusCode)
	assert.Equal(t, models.AuditFailed, create.Status)
}

func TestAudit_SinkFailureDoesNotChangeResponse(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("audit store down")

	w, body := f.do(t, call{method: http.MethodPatch, path: "/api/members/m-1", user: f.hqAdmin, body: `{"first_name":"Ada"}`})
	f.recorder.Wait()

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuditRecordsTotal.WithLabelValues("failed")))
}
