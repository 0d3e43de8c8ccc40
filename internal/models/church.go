package models

import (
	"time"

	"github.com/google/uuid"
)

// ChurchType places a church in the headquarters/branch hierarchy.
type ChurchType string

const (
	ChurchHeadquarters ChurchType = "Headquarters"
	ChurchBranch       ChurchType = "Branch"
	ChurchIndependent  ChurchType = "Independent"
)

// Church is a tenant.
type Church struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Type         ChurchType `json:"type"`
	ParentChurch *uuid.UUID `json:"parent_church,omitempty"`
	Country      string     `json:"country,omitempty"`
	State        string     `json:"state,omitempty"`
	City         string     `json:"city,omitempty"`
	Currency     string     `json:"currency,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsHeadquarters reports whether the church heads a branch network.
func (c *Church) IsHeadquarters() bool {
	return c.Type == ChurchHeadquarters
}

// ActiveChurch is the request-scoped church context a request operates on.
type ActiveChurch struct {
	Church
	CanEdit bool              `json:"can_edit"`
	Modules *ModuleVisibility `json:"modules,omitempty"`
}

// ModuleVisibility lists which product modules the effective plan exposes.
type ModuleVisibility struct {
	Dashboard          bool `json:"dashboard"`
	Members            bool `json:"members"`
	Attendance         bool `json:"attendance"`
	Ministries         bool `json:"ministries"`
	Announcements      bool `json:"announcements"`
	Billing            bool `json:"billing"`
	Referrals          bool `json:"referrals"`
	Settings           bool `json:"settings"`
	Support            bool `json:"support"`
	Branches           bool `json:"branches"`
	Tithe              bool `json:"tithe"`
	ChurchProjects     bool `json:"churchProjects"`
	SpecialFunds       bool `json:"specialFunds"`
	Offerings          bool `json:"offerings"`
	Welfare            bool `json:"welfare"`
	Pledges            bool `json:"pledges"`
	BusinessVentures   bool `json:"businessVentures"`
	Expenses           bool `json:"expenses"`
	FinancialStatement bool `json:"financialStatement"`
	ReportsAnalytics   bool `json:"reportsAnalytics"`
}
