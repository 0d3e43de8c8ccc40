package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/church-backend/internal/access"
	"github.com/covenant-hq/church-backend/internal/models"
)

type fakeUsers struct {
	users map[uuid.UUID]*models.User
	err   error
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func newResolver(t *testing.T, users ...*models.User) (*IdentityResolver, *JWTService, *fakeUsers) {
	t.Helper()
	jwtSvc := NewJWTService("test-secret", 1)
	store := &fakeUsers{users: map[uuid.UUID]*models.User{}}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return NewIdentityResolver(jwtSvc, store), jwtSvc, store
}

func TestResolve_MissingToken(t *testing.T) {
	r, _, _ := newResolver(t)
	_, err := r.Resolve(context.Background(), "", http.MethodGet, false)
	assert.True(t, access.IsKind(err, access.KindUnauthenticated))
}

func TestResolve_BadSignature(t *testing.T) {
	r, _, _ := newResolver(t)
	other := NewJWTService("other-secret", 1)
	tok, err := other.Generate(uuid.New(), "churchadmin", ScopeChurch)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), tok, http.MethodGet, false)
	assert.True(t, access.IsKind(err, access.KindUnauthenticated))
}

func TestResolve_ExpiredToken(t *testing.T) {
	u := &models.User{ID: uuid.New(), Role: models.RoleChurchAdmin, IsActive: true}
	r, jwtSvc, _ := newResolver(t, u)
	jwtSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := jwtSvc.Generate(u.ID, string(u.Role), ScopeChurch)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), tok, http.MethodGet, false)
	assert.True(t, access.IsKind(err, access.KindUnauthenticated))
}

func TestResolve_PrincipalGone(t *testing.T) {
	r, jwtSvc, _ := newResolver(t)
	tok, err := jwtSvc.Generate(uuid.New(), "churchadmin", ScopeChurch)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), tok, http.MethodGet, false)
	assert.True(t, access.IsKind(err, access.KindUnauthenticated))
}

func TestResolve_StoreFailureIsNotADenial(t *testing.T) {
	r, jwtSvc, store := newResolver(t)
	store.err = errors.New("connection refused")
	tok, err := jwtSvc.Generate(uuid.New(), "churchadmin", ScopeChurch)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), tok, http.MethodGet, false)
	require.Error(t, err)
	_, isDenial := access.AsDenial(err)
	assert.False(t, isDenial)
}

func TestResolve_NormalizesLegacyRole(t *testing.T) {
	church := uuid.New()
	u := &models.User{ID: uuid.New(), ChurchID: &church, Role: "church_admin", IsActive: true}
	r, jwtSvc, _ := newResolver(t, u)
	tok, err := jwtSvc.Generate(u.ID, "church_admin", ScopeChurch)
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), tok, http.MethodGet, false)
	require.NoError(t, err)
	assert.Equal(t, models.RoleChurchAdmin, got.Role)
}

func TestResolve_DeactivatedPrincipal(t *testing.T) {
	church := uuid.New()
	u := &models.User{ID: uuid.New(), ChurchID: &church, Role: models.RoleSecretary, IsActive: false}
	r, jwtSvc, _ := newResolver(t, u)
	tok, err := jwtSvc.Generate(u.ID, string(u.Role), ScopeChurch)
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), tok, http.MethodGet, false)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		_, err = r.Resolve(context.Background(), tok, m, false)
		d, ok := access.AsDenial(err)
		require.True(t, ok, m)
		assert.Equal(t, access.KindAccountDeactivated, d.Kind)
		assert.Equal(t, http.StatusForbidden, d.Status)
		assert.True(t, d.ReadOnly)
	}
}

func TestResolve_ScopeMustMatchClient(t *testing.T) {
	u := &models.User{ID: uuid.New(), Role: models.RoleSupportAdmin, IsActive: true}
	r, jwtSvc, _ := newResolver(t, u)
	churchTok, err := jwtSvc.Generate(u.ID, string(u.Role), ScopeChurch)
	require.NoError(t, err)
	adminTok, err := jwtSvc.Generate(u.ID, string(u.Role), ScopeAdmin)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), churchTok, http.MethodGet, false)
	assert.NoError(t, err)
	_, err = r.Resolve(context.Background(), adminTok, http.MethodGet, true)
	assert.NoError(t, err)

	_, err = r.Resolve(context.Background(), adminTok, http.MethodGet, false)
	assert.True(t, access.IsKind(err, access.KindUnauthenticated), "admin token in the church app")
	_, err = r.Resolve(context.Background(), churchTok, http.MethodGet, true)
	assert.True(t, access.IsKind(err, access.KindUnauthenticated), "church token in the admin portal")

	unscoped, err := jwtSvc.Generate(u.ID, string(u.Role), "")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), unscoped, http.MethodGet, false)
	assert.True(t, access.IsKind(err, access.KindUnauthenticated))
}

func TestExtractCredential(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: CookieAdminToken, Value: "admin-token"})
	req.AddCookie(&http.Cookie{Name: CookieToken, Value: "church-token"})

	assert.Equal(t, "header-token", ExtractCredential(req))

	req.Header.Set(HeaderClientApp, ClientAdminPortal)
	assert.Equal(t, "admin-token", ExtractCredential(req))

	cookieOnly := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieOnly.AddCookie(&http.Cookie{Name: CookieToken, Value: "church-token"})
	assert.Equal(t, "church-token", ExtractCredential(cookieOnly))

	none := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ExtractCredential(none))
}
