package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
)

// maxCASAttempts bounds the read-modify-write retries of one subscription mutation.
const maxCASAttempts = 3

// ChangeKind classifies a plan change.
type ChangeKind string

const (
	ChangeUpgrade   ChangeKind = "upgrade"
	ChangeDowngrade ChangeKind = "downgrade"
	ChangeNone      ChangeKind = "unchanged"
)

// ChangeResult reports what a plan change did.
type ChangeResult struct {
	Kind         ChangeKind           `json:"kind"`
	Subscription *models.Subscription `json:"subscription"`
	EffectiveAt  *time.Time           `json:"effective_at,omitempty"`
}

// Service applies billing state transitions to subscriptions.
type Service struct {
	store       Store
	plans       PlanRegistry
	validate    PlanValidator
	overageDays int
	now         func() time.Time
	logger      *zap.Logger
}

// NewService creates a subscription service. overageDays is the grace window opened when a church
// exceeds its member limit.
func NewService(store Store, plans PlanRegistry, validate PlanValidator, overageDays int, logger *zap.Logger) *Service {
	if validate == nil {
		validate = ValidatePlanForChurch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, plans: plans, validate: validate, overageDays: overageDays, now: time.Now, logger: logger}
}

// Get returns the church's subscription.
func (s *Service) Get(ctx context.Context, churchID uuid.UUID) (*models.Subscription, error) {
	return s.store.GetByChurch(ctx, churchID)
}

// ChangePlan moves church to targetPlanID. Upgrades (unlimited target or a strictly larger member limit)
// apply at once; anything else is stored as the pending plan for the next billing cycle.
func (s *Service) ChangePlan(ctx context.Context, church *models.Church, targetPlanID uuid.UUID) (*ChangeResult, error) {
	target, err := s.plans.GetByID(ctx, targetPlanID)
	if err != nil {
		return nil, fmt.Errorf("load target plan: %w", err)
	}
	if err := s.validate(church, target); err != nil {
		return nil, err
	}

	result := &ChangeResult{}
	sub, err := s.mutate(ctx, church.ID, func(sub *models.Subscription) error {
		current, err := s.plans.GetByID(ctx, sub.PlanID)
		if err != nil {
			return fmt.Errorf("load current plan: %w", err)
		}
		sub.Overage = models.Overage{}
		sameTrialPlan := current.ID == target.ID && models.IsTrialStatus(sub.Status)
		if current.ID == target.ID && !sameTrialPlan {
			sub.PendingPlanID = nil
			result.Kind = ChangeNone
			return nil
		}
		// Picking the assigned plan while trialing converts the trial in place.
		if sameTrialPlan || IsUpgrade(current, target) {
			sub.PlanID = target.ID
			sub.Status = models.StatusActive
			sub.PendingPlanID = nil
			sub.ExpiryWarning.Shown = false
			result.Kind = ChangeUpgrade
			return nil
		}
		pending := target.ID
		sub.PendingPlanID = &pending
		result.Kind = ChangeDowngrade
		result.EffectiveAt = sub.NextBillingDate
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Subscription = sub
	s.logger.Info("plan change",
		zap.String("church_id", church.ID.String()),
		zap.String("target_plan", target.Name),
		zap.String("kind", string(result.Kind)),
	)
	return result, nil
}

// IsUpgrade reports whether moving from current to target raises the member limit.
func IsUpgrade(current, target *models.Plan) bool {
	if target.MemberLimit == nil {
		return true
	}
	if current.MemberLimit == nil {
		return false
	}
	return *target.MemberLimit > *current.MemberLimit
}

// Cancel ends the subscription.
func (s *Service) Cancel(ctx context.Context, churchID uuid.UUID) (*models.Subscription, error) {
	return s.mutate(ctx, churchID, func(sub *models.Subscription) error {
		sub.Status = models.StatusCancelled
		sub.GracePeriodEnd = nil
		sub.ExpiryWarning.Shown = false
		return nil
	})
}

// Pause suspends the subscription.
func (s *Service) Pause(ctx context.Context, churchID uuid.UUID) (*models.Subscription, error) {
	return s.mutate(ctx, churchID, func(sub *models.Subscription) error {
		sub.Status = models.StatusSuspended
		return nil
	})
}

// Resume reactivates a paused or lapsed subscription.
func (s *Service) Resume(ctx context.Context, churchID uuid.UUID) (*models.Subscription, error) {
	return s.mutate(ctx, churchID, func(sub *models.Subscription) error {
		sub.Status = models.StatusActive
		sub.GracePeriodEnd = nil
		return nil
	})
}

// StartTrial builds the subscription a newly onboarded church starts with.
func StartTrial(churchID, planID uuid.UUID, trialDays int, now time.Time) *models.Subscription {
	trialEnd := now.AddDate(0, 0, trialDays)
	return &models.Subscription{
		ChurchID:        churchID,
		PlanID:          planID,
		Status:          models.StatusTrialing,
		TrialEnd:        &trialEnd,
		NextBillingDate: &trialEnd,
	}
}

// TrackOverage opens the overage descriptor once memberCount exceeds the effective plan's limit and
// clears it when the count is back within the limit.
func (s *Service) TrackOverage(ctx context.Context, churchID uuid.UUID, limit *int, memberCount int) error {
	over := limit != nil && memberCount > *limit
	_, err := s.mutate(ctx, churchID, func(sub *models.Subscription) error {
		switch {
		case over && !sub.Overage.IsOverLimit:
			now := s.now()
			graceEnds := now.AddDate(0, 0, s.overageDays)
			sub.Overage = models.Overage{IsOverLimit: true, StartedAt: &now, GraceEndsAt: &graceEnds}
		case !over && sub.Overage.IsOverLimit:
			sub.Overage = models.Overage{}
		default:
			return errSkip
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ApplyDueDowngrades switches every subscription whose pending plan is due onto that plan.
func (s *Service) ApplyDueDowngrades(ctx context.Context) (int, error) {
	due, err := s.store.ListDueDowngrades(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list due downgrades: %w", err)
	}
	applied := 0
	for _, d := range due {
		switched := false
		_, err := s.mutate(ctx, d.ChurchID, func(sub *models.Subscription) error {
			if sub.PendingPlanID == nil {
				return errSkip
			}
			sub.PlanID = *sub.PendingPlanID
			sub.PendingPlanID = nil
			switched = true
			return nil
		})
		if err != nil {
			s.logger.Error("apply downgrade", zap.String("church_id", d.ChurchID.String()), zap.Error(err))
			continue
		}
		if switched {
			applied++
		}
	}
	return applied, nil
}

// errSkip tells mutate the change is a no-op and nothing should be written.
var errSkip = errors.New("skip")

// mutate runs a compare-and-swap read-modify-write on churchID's subscription, retrying lost races.
func (s *Service) mutate(ctx context.Context, churchID uuid.UUID, fn func(*models.Subscription) error) (*models.Subscription, error) {
	for attempt := 1; ; attempt++ {
		sub, err := s.store.GetByChurch(ctx, churchID)
		if err != nil {
			return nil, err
		}
		if err := fn(sub); err != nil {
			if errors.Is(err, errSkip) {
				return sub, nil
			}
			return nil, err
		}
		err = s.store.Update(ctx, sub)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= maxCASAttempts {
			return nil, err
		}
		s.logger.Debug("subscription update conflict, retrying", zap.String("church_id", churchID.String()), zap.Int("attempt", attempt))
	}
}
