package permissions

import (
	"strings"

	"github.com/covenant-hq/church-backend/internal/models"
)

// legacyAliases maps historical role spellings to canonical roles.
var legacyAliases = map[string]models.Role{
	"super_admin":   models.RoleSuperAdmin,
	"support_admin": models.RoleSupportAdmin,
	"church_admin":  models.RoleChurchAdmin,
}

// NormalizeRole returns the canonical role for raw. Every stage that compares roles goes through here.
func NormalizeRole(raw string) models.Role {
	r := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := legacyAliases[r]; ok {
		return canonical
	}
	return models.Role(r)
}

// IsKnownRole reports whether role has an entry in the role table.
func IsKnownRole(role models.Role) bool {
	_, ok := roleTable[role]
	return ok
}

// EffectiveRoleForClient applies the admin-portal rule: a support admin calling from the admin portal
// is treated as a super admin for route role checks.
func EffectiveRoleForClient(raw string, adminPortal bool) models.Role {
	role := NormalizeRole(raw)
	if adminPortal && role == models.RoleSupportAdmin {
		return models.RoleSuperAdmin
	}
	return role
}
