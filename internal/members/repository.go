package members

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/pkg/database"
)

// ErrNotFound is returned when no member matches within the church.
var ErrNotFound = errors.New("member not found")

// Repository handles member persistence. Every query is scoped to one church.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a members repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

const memberColumns = `id, church_id, first_name, last_name, email, phone, gender, is_active, created_at, updated_at`

func scanMember(row pgx.Row) (*models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.ChurchID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.Gender, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a member.
func (r *Repository) Create(ctx context.Context, m *models.Member) error {
	const q = `INSERT INTO members (church_id, first_name, last_name, email, phone, gender, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, m.ChurchID, m.FirstName, m.LastName, m.Email, m.Phone, m.Gender, m.IsActive).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// Get returns one member of churchID.
func (r *Repository) Get(ctx context.Context, churchID, id uuid.UUID) (*models.Member, error) {
	return scanMember(r.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE church_id = $1 AND id = $2`, churchID, id))
}

// List returns a page of churchID's members ordered by name. search matches names and email.
func (r *Repository) List(ctx context.Context, churchID uuid.UUID, search string, limit, offset int) ([]*models.Member, error) {
	rows, err := r.db.Query(ctx, `SELECT `+memberColumns+` FROM members
		WHERE church_id = $1 AND ($2 = '' OR first_name ILIKE '%' || $2 || '%' OR last_name ILIKE '%' || $2 || '%'
			OR email ILIKE '%' || $2 || '%')
		ORDER BY last_name, first_name LIMIT $3 OFFSET $4`, churchID, search, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Update writes the editable fields of m.
func (r *Repository) Update(ctx context.Context, m *models.Member) error {
	const q = `UPDATE members SET first_name = $3, last_name = $4, email = $5, phone = $6, gender = $7, is_active = $8,
		updated_at = NOW() WHERE church_id = $1 AND id = $2 RETURNING updated_at`
	err := r.db.QueryRow(ctx, q, m.ChurchID, m.ID, m.FirstName, m.LastName, m.Email, m.Phone, m.Gender, m.IsActive).
		Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes a member.
func (r *Repository) Delete(ctx context.Context, churchID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM members WHERE church_id = $1 AND id = $2`, churchID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActive returns the number of active members of churchID.
func (r *Repository) CountActive(ctx context.Context, churchID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM members WHERE church_id = $1 AND is_active`, churchID).Scan(&n)
	return n, err
}
