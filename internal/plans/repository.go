package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/pkg/database"
)

// ErrNotFound is returned when no plan matches.
var ErrNotFound = errors.New("plan not found")

// Repository handles plan persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a plans repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

const planColumns = `id, name, member_limit, headquarters_only, is_active, prices, created_at, updated_at`

func scanPlan(row pgx.Row) (*models.Plan, error) {
	var p models.Plan
	var prices []byte
	err := row.Scan(&p.ID, &p.Name, &p.MemberLimit, &p.HeadquartersOnly, &p.IsActive, &prices, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(prices) > 0 {
		if err := json.Unmarshal(prices, &p.Prices); err != nil {
			return nil, fmt.Errorf("decode prices for plan %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

// GetByID returns a plan by ID, active or not.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
}

// GetActiveByName returns the active plan with the given name.
func (r *Repository) GetActiveByName(ctx context.Context, name string) (*models.Plan, error) {
	return scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE name = $1 AND is_active`, name))
}

// ListActive returns the active plans ordered by member limit (unlimited last).
func (r *Repository) ListActive(ctx context.Context) ([]*models.Plan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+planColumns+` FROM plans WHERE is_active
		ORDER BY member_limit ASC NULLS LAST, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
