package permissions

import "github.com/covenant-hq/church-backend/internal/models"

// Action is one of the four CRUD capabilities.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var (
	crud = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}
	cru  = []Action{ActionRead, ActionCreate, ActionUpdate}
	ro   = []Action{ActionRead}
)

// roleConfig is a role's entry in the table. All marks the wildcard role.
type roleConfig struct {
	All     bool
	Modules map[string][]Action
}

func grant(actions []Action, modules ...string) map[string][]Action {
	m := make(map[string][]Action, len(modules))
	for _, mod := range modules {
		m[mod] = actions
	}
	return m
}

func merge(parts ...map[string][]Action) map[string][]Action {
	out := make(map[string][]Action)
	for _, p := range parts {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

var roleTable = map[models.Role]roleConfig{
	models.RoleSuperAdmin: {All: true},

	models.RoleSupportAdmin: {Modules: grant(ro, Registry...)},

	models.RoleChurchAdmin: {Modules: grant(crud, Registry...)},

	models.RolePastor: {Modules: merge(
		grant(ro, Registry...),
		grant(cru, ModuleMembers, ModuleAttendance, ModuleMinistries, ModuleAnnouncements, ModuleEvents),
	)},

	models.RoleSecretary: {Modules: merge(
		grant(ro, ModuleDashboard, ModuleSettings, ModuleSupport),
		grant(cru, ModuleMembers, ModuleAttendance, ModuleMinistries),
		grant(crud, ModuleAnnouncements, ModuleEvents),
	)},

	models.RoleTreasurer: {Modules: merge(
		grant(ro, ModuleDashboard, ModuleMembers, ModuleFinancialStatement, ModuleReportsAnalytics, ModuleSupport),
		grant(crud, ModuleTithe, ModuleOfferings, ModuleChurchProjects, ModuleSpecialFunds, ModuleWelfare,
			ModulePledges, ModuleBusinessVentures, ModuleExpenses),
	)},

	models.RoleUsher: {Modules: merge(
		grant(ro, ModuleDashboard, ModuleMembers, ModuleEvents),
		grant([]Action{ActionRead, ActionCreate}, ModuleAttendance),
	)},
}
