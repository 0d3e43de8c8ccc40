package permissions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/church-backend/internal/models"
)

func TestResolve_SuperAdminIsWildcard(t *testing.T) {
	for _, raw := range []string{"superadmin", "super_admin", " SuperAdmin "} {
		m := Resolve(raw)
		assert.True(t, m.Super, raw)
		assert.Nil(t, m.Modules, raw)

		b, err := json.Marshal(m)
		require.NoError(t, err)
		assert.JSONEq(t, `{"super":true}`, string(b))
	}
}

func TestResolve_EveryModulePresentForNonWildcardRoles(t *testing.T) {
	for role, cfg := range roleTable {
		if cfg.All {
			continue
		}
		m := Resolve(string(role))
		require.False(t, m.Super)
		for _, module := range Registry {
			_, ok := m.Modules[module]
			assert.True(t, ok, "role %s missing module %s", role, module)
		}
		assert.Len(t, m.Modules, len(Registry))
	}
}

func TestResolve_UnlistedActionsDefaultFalse(t *testing.T) {
	for role, cfg := range roleTable {
		if cfg.All {
			continue
		}
		m := Resolve(string(role))
		for _, module := range Registry {
			listed := map[Action]bool{}
			for _, a := range cfg.Modules[module] {
				listed[a] = true
			}
			for _, a := range crud {
				assert.Equal(t, listed[a], m.Allows(module, a), "role %s %s.%s", role, module, a)
			}
		}
	}
}

func TestResolve_Secretary(t *testing.T) {
	m := Resolve("secretary")
	assert.True(t, m.Modules[ModuleMembers].Read)
	assert.False(t, m.Modules[ModuleMembers].Delete)

	tithe, ok := m.Modules[ModuleTithe]
	require.True(t, ok)
	assert.Equal(t, Actions{}, tithe)
}

func TestResolve_UnknownRoleDeniesAll(t *testing.T) {
	m := Resolve("janitor")
	assert.False(t, m.Super)
	assert.Empty(t, m.Modules)
	assert.False(t, m.Allows(ModuleDashboard, ActionRead))

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestResolve_Deterministic(t *testing.T) {
	assert.Equal(t, Resolve("treasurer"), Resolve("treasurer"))
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]models.Role{
		"super_admin":   models.RoleSuperAdmin,
		"support_admin": models.RoleSupportAdmin,
		"church_admin":  models.RoleChurchAdmin,
		"Pastor":        models.RolePastor,
		"usher":         models.RoleUsher,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeRole(in), in)
	}
}

func TestEffectiveRoleForClient(t *testing.T) {
	assert.Equal(t, models.RoleSuperAdmin, EffectiveRoleForClient("support_admin", true))
	assert.Equal(t, models.RoleSupportAdmin, EffectiveRoleForClient("supportadmin", false))
	assert.Equal(t, models.RoleChurchAdmin, EffectiveRoleForClient("churchadmin", true))
}

func TestActionForMethod(t *testing.T) {
	assert.Equal(t, ActionRead, ActionForMethod("GET"))
	assert.Equal(t, ActionCreate, ActionForMethod("POST"))
	assert.Equal(t, ActionUpdate, ActionForMethod("PATCH"))
	assert.Equal(t, ActionUpdate, ActionForMethod("PUT"))
	assert.Equal(t, ActionDelete, ActionForMethod("DELETE"))
	assert.True(t, IsMutating("DELETE"))
	assert.False(t, IsMutating("HEAD"))
}
