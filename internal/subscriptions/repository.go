package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/pkg/database"
)

var (
	// ErrNotFound is returned when a church has no subscription.
	ErrNotFound = errors.New("subscription not found")
	// ErrVersionConflict is returned when a compare-and-swap update lost a race.
	ErrVersionConflict = errors.New("subscription was modified concurrently")
)

// Store is the subscription persistence the gate and service need.
type Store interface {
	GetByChurch(ctx context.Context, churchID uuid.UUID) (*models.Subscription, error)
	Create(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, sub *models.Subscription) error
	ListDueDowngrades(ctx context.Context, now time.Time) ([]*models.Subscription, error)
}

// Repository handles subscription persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a subscriptions repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const subColumns = `id, church_id, plan_id, status, trial_end, next_billing_date, grace_period_end,
	pending_plan_id, overage, expiry_warning, version, created_at, updated_at`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var s models.Subscription
	var overage, warning []byte
	err := row.Scan(&s.ID, &s.ChurchID, &s.PlanID, &s.Status, &s.TrialEnd, &s.NextBillingDate, &s.GracePeriodEnd,
		&s.PendingPlanID, &overage, &warning, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(overage) > 0 {
		if err := json.Unmarshal(overage, &s.Overage); err != nil {
			return nil, fmt.Errorf("decode overage: %w", err)
		}
	}
	if len(warning) > 0 {
		if err := json.Unmarshal(warning, &s.ExpiryWarning); err != nil {
			return nil, fmt.Errorf("decode expiry warning: %w", err)
		}
	}
	return &s, nil
}

// GetByChurch returns the subscription owned by churchID.
func (r *Repository) GetByChurch(ctx context.Context, churchID uuid.UUID) (*models.Subscription, error) {
	return scanSubscription(r.db.QueryRow(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE church_id = $1`, churchID))
}

// Create inserts a subscription at version 1.
func (r *Repository) Create(ctx context.Context, s *models.Subscription) error {
	overage, warning, err := encodeDescriptors(s)
	if err != nil {
		return err
	}
	const q = `INSERT INTO subscriptions (church_id, plan_id, status, trial_end, next_billing_date, grace_period_end,
		pending_plan_id, overage, expiry_warning, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		RETURNING id, version, created_at, updated_at`
	return r.db.QueryRow(ctx, q, s.ChurchID, s.PlanID, s.Status, s.TrialEnd, s.NextBillingDate, s.GracePeriodEnd,
		s.PendingPlanID, overage, warning).Scan(&s.ID, &s.Version, &s.CreatedAt, &s.UpdatedAt)
}

// Update writes s only if the stored version still equals s.Version, then bumps s.Version.
func (r *Repository) Update(ctx context.Context, s *models.Subscription) error {
	overage, warning, err := encodeDescriptors(s)
	if err != nil {
		return err
	}
	const q = `UPDATE subscriptions SET plan_id = $3, status = $4, trial_end = $5, next_billing_date = $6,
		grace_period_end = $7, pending_plan_id = $8, overage = $9, expiry_warning = $10,
		version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`
	err = r.db.QueryRow(ctx, q, s.ID, s.Version, s.PlanID, s.Status, s.TrialEnd, s.NextBillingDate, s.GracePeriodEnd,
		s.PendingPlanID, overage, warning).Scan(&s.Version, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

// ListDueDowngrades returns subscriptions whose scheduled downgrade is due at now.
func (r *Repository) ListDueDowngrades(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	rows, err := r.db.Query(ctx, `SELECT `+subColumns+` FROM subscriptions
		WHERE pending_plan_id IS NOT NULL AND next_billing_date IS NOT NULL AND next_billing_date <= $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func encodeDescriptors(s *models.Subscription) ([]byte, []byte, error) {
	overage, err := json.Marshal(s.Overage)
	if err != nil {
		return nil, nil, fmt.Errorf("encode overage: %w", err)
	}
	warning, err := json.Marshal(s.ExpiryWarning)
	if err != nil {
		return nil, nil, fmt.Errorf("encode expiry warning: %w", err)
	}
	return overage, warning, nil
}
