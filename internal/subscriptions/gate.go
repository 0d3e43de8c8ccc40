package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/covenant-hq/church-backend/internal/access"
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/permissions"
	"github.com/covenant-hq/church-backend/internal/plans"
)

// Missing-subscription policies.
const (
	PolicyAllow = "allow"
	PolicyDeny  = "deny"
)

// DefaultFinancePrefixes are the route prefixes of the finance modules.
var DefaultFinancePrefixes = []string{
	"/api/tithes",
	"/api/offerings",
	"/api/pledges",
	"/api/welfare",
	"/api/business-ventures",
	"/api/expenses",
	"/api/church-projects",
	"/api/special-funds",
	"/api/financial-statement",
}

// DefaultPaymentPaths stay writable while a church is locked so it can always pay to unlock itself.
var DefaultPaymentPaths = []string{
	"/api/billing/change-plan",
	"/api/billing/pay",
	"/api/billing/verify-payment",
}

// PlanRegistry looks plans up by id and by active name.
type PlanRegistry interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	GetActiveByName(ctx context.Context, name string) (*models.Plan, error)
}

// GateConfig tunes the subscription gate.
type GateConfig struct {
	MissingSubscriptionPolicy string
	FinancePrefixes           []string
	PaymentPaths              []string
}

// Gate decides what a church's subscription lets a request do.
type Gate struct {
	subs  Store
	plans PlanRegistry
	cfg   GateConfig
	now   func() time.Time
}

// NewGate creates a subscription gate.
func NewGate(subs Store, plans PlanRegistry, cfg GateConfig) *Gate {
	if cfg.MissingSubscriptionPolicy == "" {
		cfg.MissingSubscriptionPolicy = PolicyAllow
	}
	if cfg.FinancePrefixes == nil {
		cfg.FinancePrefixes = DefaultFinancePrefixes
	}
	if cfg.PaymentPaths == nil {
		cfg.PaymentPaths = DefaultPaymentPaths
	}
	return &Gate{subs: subs, plans: plans, cfg: cfg, now: time.Now}
}

// Request is what the gate evaluates.
type Request struct {
	User   *models.User
	Church *models.ActiveChurch
	Method string
	Path   string
}

// Result is the billing context the gate resolved. Every field may be nil.
type Result struct {
	Subscription  *models.Subscription
	EffectivePlan *models.Plan
	Modules       *models.ModuleVisibility
}

// Apply loads the active church's subscription and rejects the request when the plan or billing state
// forbids it. The result is returned alongside a denial so callers can still expose billing context.
func (g *Gate) Apply(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}
	if req.Church == nil {
		return res, nil
	}

	system := req.User != nil && permissions.IsSystemRole(string(req.User.Role))
	sub, err := g.load(ctx, req.Church, res)
	if system {
		// System principals always pass; billing context is informational for them.
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	if sub == nil {
		if g.cfg.MissingSubscriptionPolicy == PolicyDeny && permissions.IsMutating(req.Method) && g.isFinancePath(req.Path) {
			return res, access.ModuleNotIncluded()
		}
		return res, nil
	}

	if g.isFinancePath(req.Path) && res.EffectivePlan.Name == models.PlanBasic {
		return res, access.ModuleNotIncluded()
	}

	if permissions.IsMutating(req.Method) && !g.isPaymentPath(req.Path) {
		if locked, trial := Expired(sub, g.now()); locked {
			return res, access.SubscriptionExpired(trial)
		}
	}
	return res, nil
}

// load fills res with the church's subscription, effective plan and module visibility.
func (g *Gate) load(ctx context.Context, church *models.ActiveChurch, res *Result) (*models.Subscription, error) {
	sub, err := g.subs.GetByChurch(ctx, church.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	plan, err := g.EffectivePlan(ctx, sub)
	if err != nil {
		return nil, err
	}
	modules := ComputeModules(plan.Name, church.Type)
	res.Subscription, res.EffectivePlan, res.Modules = sub, plan, &modules
	return sub, nil
}

// EffectivePlan returns the plan gating decisions use: premium while trialing, the assigned plan
// otherwise.
func (g *Gate) EffectivePlan(ctx context.Context, sub *models.Subscription) (*models.Plan, error) {
	if models.IsTrialStatus(sub.Status) {
		p, err := g.plans.GetActiveByName(ctx, models.PlanPremium)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, plans.ErrNotFound) {
			return nil, fmt.Errorf("load premium plan: %w", err)
		}
		return &models.Plan{Name: models.PlanPremium, IsActive: true}, nil
	}
	p, err := g.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", sub.PlanID, err)
	}
	return p, nil
}

// Expired reports whether sub is locked at now, and whether the lock comes from an ended trial.
func Expired(sub *models.Subscription, now time.Time) (locked bool, trial bool) {
	switch {
	case models.IsTrialStatus(sub.Status):
		if sub.TrialEnd != nil && now.After(*sub.TrialEnd) {
			return true, true
		}
	case sub.Status == models.StatusPastDue:
		if sub.GracePeriodEnd != nil && now.After(*sub.GracePeriodEnd) {
			return true, false
		}
	case sub.Status == models.StatusSuspended:
		return true, false
	}
	return false, false
}

// CheckMemberOverage rejects member creation once an overage's grace window has passed.
func CheckMemberOverage(sub *models.Subscription, now time.Time) error {
	if sub == nil || !sub.Overage.IsOverLimit || sub.Overage.GraceEndsAt == nil {
		return nil
	}
	if now.After(*sub.Overage.GraceEndsAt) {
		return access.MemberLimitExceeded()
	}
	return nil
}

func (g *Gate) isFinancePath(path string) bool {
	return matchPrefix(path, g.cfg.FinancePrefixes)
}

func (g *Gate) isPaymentPath(path string) bool {
	return matchPrefix(path, g.cfg.PaymentPaths)
}

func matchPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
