package access

import (
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/permissions"
)

// GuardReadOnly rejects writes that the principal may see but not change. Support admins are read-only
// everywhere; church principals are read-only on any church other than their home church.
func GuardReadOnly(user *models.User, active *models.ActiveChurch, method string) error {
	if user == nil || !permissions.IsMutating(method) {
		return nil
	}
	switch permissions.NormalizeRole(string(user.Role)) {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleSupportAdmin:
		return ReadOnlyAccess()
	}
	if active == nil {
		return nil
	}
	if user.ChurchID == nil || active.ID != *user.ChurchID {
		return BranchDataReadOnly()
	}
	return nil
}
