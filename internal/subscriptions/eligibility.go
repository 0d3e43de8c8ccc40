package subscriptions

import (
	"github.com/covenant-hq/church-backend/internal/access"
	"github.com/covenant-hq/church-backend/internal/models"
)

// PlanValidator decides whether a church may move to a plan.
type PlanValidator func(church *models.Church, plan *models.Plan) error

// ValidatePlanForChurch rejects inactive plans and headquarters-only plans for non-headquarters churches.
func ValidatePlanForChurch(church *models.Church, plan *models.Plan) error {
	if !plan.IsActive {
		return access.IneligiblePlan("This plan is no longer available")
	}
	if plan.HeadquartersOnly && !church.IsHeadquarters() {
		return access.IneligiblePlan("The " + plan.Name + " plan is only available to headquarters churches")
	}
	return nil
}
