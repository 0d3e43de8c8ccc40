package churches

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/requestctx"
	"github.com/covenant-hq/church-backend/pkg/response"
)

func (m *memStore) UpdateProfile(_ context.Context, ch *models.Church) error {
	if _, ok := m.churches[ch.ID]; !ok {
		return ErrNotFound
	}
	cp := *ch
	m.churches[ch.ID] = &cp
	return nil
}

func (m *memStore) ListBranches(_ context.Context, hqID uuid.UUID) ([]*models.Church, error) {
	var out []*models.Church
	for _, ch := range m.churches {
		if ch.ParentChurch != nil && *ch.ParentChurch == hqID {
			out = append(out, ch)
		}
	}
	return out, nil
}

type fakeBranches struct {
	store *memStore
}

func (f fakeBranches) CreateBranch(_ context.Context, hq *models.Church, branch *models.Church) error {
	branch.Type = models.ChurchBranch
	branch.ParentChurch = &hq.ID
	if err := ValidateHierarchy(branch, hq); err != nil {
		return err
	}
	branch.ID = uuid.New()
	f.store.churches[branch.ID] = branch
	return nil
}

func serve(t *testing.T, f *fixture, active *models.ActiveChurch, method, path, body string) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(f.store, fakeBranches{f.store}, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if active != nil {
			requestctx.SetActiveChurch(c, active)
		}
		c.Next()
	})
	r.GET("/api/church", h.Get)
	r.PUT("/api/church", h.Update)
	r.GET("/api/church/branches", h.ListBranches)
	r.POST("/api/church/branches", h.CreateBranch)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func TestHandler_GetRequiresContext(t *testing.T) {
	f := newFixture()
	w, _ := serve(t, f, nil, http.MethodGet, "/api/church", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := serve(t, f, &models.ActiveChurch{Church: *f.hq, CanEdit: true}, http.MethodGet, "/api/church", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, "Grace HQ", data["name"])
	assert.Equal(t, true, data["can_edit"])
}

func TestHandler_UpdateProfile(t *testing.T) {
	f := newFixture()
	w, _ := serve(t, f, &models.ActiveChurch{Church: *f.independent, CanEdit: true},
		http.MethodPut, "/api/church", `{"name":" Solo Chapel ","currency":"ngn","city":"Lagos"}`)
	require.Equal(t, http.StatusOK, w.Code)

	saved := f.store.churches[f.independent.ID]
	assert.Equal(t, "Solo Chapel", saved.Name)
	assert.Equal(t, "NGN", saved.Currency)
	assert.Equal(t, models.ChurchIndependent, saved.Type)
}

func TestHandler_UpdateReadOnlyBranchView(t *testing.T) {
	f := newFixture()
	w, body := serve(t, f, &models.ActiveChurch{Church: *f.branch, CanEdit: false},
		http.MethodPut, "/api/church", `{"name":"Renamed"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, body.ReadOnly)
	assert.Equal(t, "Grace East", f.store.churches[f.branch.ID].Name)
}

func TestHandler_HQWithBranchesKeepsType(t *testing.T) {
	f := newFixture()
	w, _ := serve(t, f, &models.ActiveChurch{Church: *f.hq, CanEdit: true},
		http.MethodPut, "/api/church", `{"name":"Grace HQ","type":"Independent"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.ChurchHeadquarters, f.store.churches[f.hq.ID].Type)
}

func TestHandler_IndependentCannotBecomeBranchWithoutParent(t *testing.T) {
	f := newFixture()
	w, body := serve(t, f, &models.ActiveChurch{Church: *f.independent, CanEdit: true},
		http.MethodPut, "/api/church", `{"name":"Solo","type":"Branch"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrBranchNeedsParent.Error(), body.Message)
}

func TestHandler_Branches(t *testing.T) {
	f := newFixture()
	hq := &models.ActiveChurch{Church: *f.hq, CanEdit: true}

	w, body := serve(t, f, hq, http.MethodGet, "/api/church/branches", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body.Data, 1)

	w, _ = serve(t, f, hq, http.MethodPost, "/api/church/branches", `{"name":"Grace North"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w, body = serve(t, f, hq, http.MethodGet, "/api/church/branches", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body.Data, 2)

	w, _ = serve(t, f, &models.ActiveChurch{Church: *f.independent, CanEdit: true}, http.MethodGet, "/api/church/branches", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = serve(t, f, hq, http.MethodPost, "/api/church/branches", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
