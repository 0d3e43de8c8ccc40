package finance

import "github.com/covenant-hq/church-backend/internal/permissions"

// Category is one ledger of the finance module.
type Category struct {
	Name    string
	Route   string
	Module  string
	Outflow bool
}

// Categories lists every ledger with the route it is served under.
var Categories = []Category{
	{Name: "tithe", Route: "/tithes", Module: permissions.ModuleTithe},
	{Name: "offering", Route: "/offerings", Module: permissions.ModuleOfferings},
	{Name: "pledge", Route: "/pledges", Module: permissions.ModulePledges},
	{Name: "welfare", Route: "/welfare", Module: permissions.ModuleWelfare},
	{Name: "business_venture", Route: "/business-ventures", Module: permissions.ModuleBusinessVentures},
	{Name: "expense", Route: "/expenses", Module: permissions.ModuleExpenses, Outflow: true},
	{Name: "church_project", Route: "/church-projects", Module: permissions.ModuleChurchProjects},
	{Name: "special_fund", Route: "/special-funds", Module: permissions.ModuleSpecialFunds},
}

func categoryByName(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
