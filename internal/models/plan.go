package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan names.
const (
	PlanFreeLite = "free lite"
	PlanBasic    = "basic"
	PlanStandard = "standard"
	PlanPremium  = "premium"
)

// Price is one entry of a plan's price table.
type Price struct {
	Currency    string `json:"currency"`
	Interval    string `json:"interval"` // monthly | yearly
	AmountCents int64  `json:"amount_cents"`
}

// Plan is a subscription tier. MemberLimit nil means unlimited.
type Plan struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	MemberLimit      *int      `json:"member_limit"`
	HeadquartersOnly bool      `json:"headquarters_only"`
	IsActive         bool      `json:"is_active"`
	Prices           []Price   `json:"prices"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
