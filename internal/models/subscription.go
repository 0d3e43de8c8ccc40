package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus values. "free trial" is the historical spelling of trialing.
const (
	StatusTrialing  = "trialing"
	StatusFreeTrial = "free trial"
	StatusActive    = "active"
	StatusPastDue   = "past_due"
	StatusSuspended = "suspended"
	StatusCancelled = "cancelled"
)

// IsTrialStatus reports whether status is one of the trial spellings.
func IsTrialStatus(status string) bool {
	return status == StatusTrialing || status == StatusFreeTrial
}

// Overage tracks a church that exceeded its plan's member limit.
type Overage struct {
	IsOverLimit bool       `json:"isOverLimit"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	GraceEndsAt *time.Time `json:"graceEndsAt,omitempty"`
}

// ExpiryWarning records whether the expiry banner was already shown.
type ExpiryWarning struct {
	Shown bool `json:"shown"`
}

// Subscription is a church's billing state. Version increments on every write.
type Subscription struct {
	ID              uuid.UUID     `json:"id"`
	ChurchID        uuid.UUID     `json:"church_id"`
	PlanID          uuid.UUID     `json:"plan_id"`
	Status          string        `json:"status"`
	TrialEnd        *time.Time    `json:"trial_end,omitempty"`
	NextBillingDate *time.Time    `json:"next_billing_date,omitempty"`
	GracePeriodEnd  *time.Time    `json:"grace_period_end,omitempty"`
	PendingPlanID   *uuid.UUID    `json:"pending_plan_id,omitempty"`
	Overage         Overage       `json:"overage"`
	ExpiryWarning   ExpiryWarning `json:"expiry_warning"`
	Version         int64         `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
