package permissions

// Module names of the permission registry.
const (
	ModuleDashboard          = "dashboard"
	ModuleMembers            = "members"
	ModuleAttendance         = "attendance"
	ModuleMinistries         = "ministries"
	ModuleAnnouncements      = "announcements"
	ModuleEvents             = "events"
	ModuleTithe              = "tithe"
	ModuleOfferings          = "offerings"
	ModuleChurchProjects     = "churchProjects"
	ModuleSpecialFunds       = "specialFunds"
	ModuleWelfare            = "welfare"
	ModulePledges            = "pledges"
	ModuleBusinessVentures   = "businessVentures"
	ModuleExpenses           = "expenses"
	ModuleFinancialStatement = "financialStatement"
	ModuleReportsAnalytics   = "reportsAnalytics"
	ModuleBranches           = "branches"
	ModuleBilling            = "billing"
	ModuleReferrals          = "referrals"
	ModuleSettings           = "settings"
	ModuleSupport            = "support"
	ModuleUsers              = "users"
	ModuleAuditLogs          = "auditLogs"
)

// Registry is every module a permission matrix carries an entry for.
var Registry = []string{
	ModuleDashboard,
	ModuleMembers,
	ModuleAttendance,
	ModuleMinistries,
	ModuleAnnouncements,
	ModuleEvents,
	ModuleTithe,
	ModuleOfferings,
	ModuleChurchProjects,
	ModuleSpecialFunds,
	ModuleWelfare,
	ModulePledges,
	ModuleBusinessVentures,
	ModuleExpenses,
	ModuleFinancialStatement,
	ModuleReportsAnalytics,
	ModuleBranches,
	ModuleBilling,
	ModuleReferrals,
	ModuleSettings,
	ModuleSupport,
	ModuleUsers,
	ModuleAuditLogs,
}

// FinanceModules are the modules gated behind the standard and premium plans.
var FinanceModules = []string{
	ModuleTithe,
	ModuleOfferings,
	ModuleChurchProjects,
	ModuleSpecialFunds,
	ModuleWelfare,
	ModulePledges,
	ModuleBusinessVentures,
	ModuleExpenses,
	ModuleFinancialStatement,
}
