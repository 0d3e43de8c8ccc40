package subscriptions

import "github.com/covenant-hq/church-backend/internal/models"

// ComputeModules derives module visibility from the effective plan and church type. Each call returns a
// fresh value.
func ComputeModules(planName string, churchType models.ChurchType) models.ModuleVisibility {
	premium := planName == models.PlanPremium
	finance := premium || planName == models.PlanStandard

	return models.ModuleVisibility{
		Dashboard:     true,
		Members:       true,
		Attendance:    true,
		Ministries:    true,
		Announcements: true,
		Billing:       true,
		Referrals:     true,
		Settings:      true,
		Support:       true,

		Branches: premium && churchType == models.ChurchHeadquarters,

		Tithe:              finance,
		ChurchProjects:     finance,
		SpecialFunds:       finance,
		Offerings:          finance,
		Welfare:            finance,
		Pledges:            finance,
		BusinessVentures:   finance,
		Expenses:           finance,
		FinancialStatement: finance,

		ReportsAnalytics: premium,
	}
}
