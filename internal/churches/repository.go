package churches

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/pkg/database"
)

// ErrNotFound is returned when no church matches.
var ErrNotFound = errors.New("church not found")

// Repository handles church persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a churches repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const churchColumns = `id, name, type, parent_church, COALESCE(country,''), COALESCE(state,''), COALESCE(city,''),
	COALESCE(currency,''), created_at, updated_at`

func scanChurch(row pgx.Row) (*models.Church, error) {
	var ch models.Church
	var typ string
	err := row.Scan(&ch.ID, &ch.Name, &typ, &ch.ParentChurch, &ch.Country, &ch.State, &ch.City,
		&ch.Currency, &ch.CreatedAt, &ch.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ch.Type = models.ChurchType(typ)
	return &ch, nil
}

// GetByID returns a church by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Church, error) {
	return scanChurch(r.db.QueryRow(ctx, `SELECT `+churchColumns+` FROM churches WHERE id = $1`, id))
}

// Create inserts a church.
func (r *Repository) Create(ctx context.Context, ch *models.Church) error {
	const q = `INSERT INTO churches (name, type, parent_church, country, state, city, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, ch.Name, string(ch.Type), ch.ParentChurch, ch.Country, ch.State, ch.City, ch.Currency).
		Scan(&ch.ID, &ch.CreatedAt, &ch.UpdatedAt)
}

// UpdateProfile writes the mutable profile fields of ch.
func (r *Repository) UpdateProfile(ctx context.Context, ch *models.Church) error {
	const q = `UPDATE churches SET name = $2, type = $3, parent_church = $4, country = $5,
		state = $6, city = $7, currency = $8, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.db.QueryRow(ctx, q, ch.ID, ch.Name, string(ch.Type), ch.ParentChurch, ch.Country, ch.State, ch.City, ch.Currency).
		Scan(&ch.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ListBranches returns the branches whose parent is hqID.
func (r *Repository) ListBranches(ctx context.Context, hqID uuid.UUID) ([]*models.Church, error) {
	rows, err := r.db.Query(ctx, `SELECT `+churchColumns+` FROM churches WHERE parent_church = $1 ORDER BY name`, hqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Church
	for rows.Next() {
		ch, err := scanChurch(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, ch)
	}
	return list, rows.Err()
}
