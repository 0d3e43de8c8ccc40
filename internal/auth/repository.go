package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/pkg/database"
)

// ErrNotFound is returned when no user matches.
var ErrNotFound = errors.New("user not found")

// Repository handles user persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an auth repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const userColumns = `id, church_id, email, password_hash, full_name, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.ChurchID, &u.Email, &u.PasswordHash, &u.FullName, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// Create inserts a new user and fills generated fields.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (church_id, email, password_hash, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, u.ChurchID, u.Email, u.PasswordHash, u.FullName, string(u.Role), u.IsActive).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// ListByChurch returns the staff accounts of a church.
func (r *Repository) ListByChurch(ctx context.Context, churchID uuid.UUID) ([]models.UserPublic, error) {
	rows, err := r.db.Query(ctx, `SELECT id, church_id, email, full_name, role, is_active, created_at
		FROM users WHERE church_id = $1 ORDER BY full_name, email`, churchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		var role string
		if err := rows.Scan(&u.ID, &u.ChurchID, &u.Email, &u.FullName, &role, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		list = append(list, u)
	}
	return list, rows.Err()
}

// SetActive toggles a user's active flag within a church. Users are never hard-deleted.
func (r *Repository) SetActive(ctx context.Context, churchID, userID uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_active = $3, updated_at = NOW()
		WHERE id = $2 AND church_id = $1`, churchID, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
