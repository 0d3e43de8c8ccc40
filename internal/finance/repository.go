package finance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/pkg/database"
)

// ErrNotFound is returned when no entry matches.
var ErrNotFound = errors.New("finance entry not found")

// Repository handles ledger persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a finance repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

const entryColumns = `id, church_id, category, member_id, amount_cents, currency, description, entry_date, recorded_by,
	created_at, updated_at`

func scanEntry(row pgx.Row) (*models.FinanceEntry, error) {
	var e models.FinanceEntry
	err := row.Scan(&e.ID, &e.ChurchID, &e.Category, &e.MemberID, &e.AmountCents, &e.Currency, &e.Description,
		&e.EntryDate, &e.RecordedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts an entry.
func (r *Repository) Create(ctx context.Context, e *models.FinanceEntry) error {
	const q = `INSERT INTO finance_entries (church_id, category, member_id, amount_cents, currency, description, entry_date, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, e.ChurchID, e.Category, e.MemberID, e.AmountCents, e.Currency, e.Description,
		e.EntryDate, e.RecordedBy).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Get returns one entry of a church's ledger.
func (r *Repository) Get(ctx context.Context, churchID uuid.UUID, category string, id uuid.UUID) (*models.FinanceEntry, error) {
	return scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM finance_entries
		WHERE church_id = $1 AND category = $2 AND id = $3`, churchID, category, id))
}

// List returns a church's ledger entries between from and to (inclusive), newest first.
func (r *Repository) List(ctx context.Context, churchID uuid.UUID, category string, from, to time.Time) ([]*models.FinanceEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM finance_entries
		WHERE church_id = $1 AND category = $2 AND entry_date BETWEEN $3 AND $4
		ORDER BY entry_date DESC, created_at DESC`, churchID, category, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.FinanceEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Update writes the editable fields of e.
func (r *Repository) Update(ctx context.Context, e *models.FinanceEntry) error {
	const q = `UPDATE finance_entries SET member_id = $4, amount_cents = $5, currency = $6, description = $7,
		entry_date = $8, updated_at = NOW() WHERE church_id = $1 AND category = $2 AND id = $3 RETURNING updated_at`
	err := r.db.QueryRow(ctx, q, e.ChurchID, e.Category, e.ID, e.MemberID, e.AmountCents, e.Currency, e.Description,
		e.EntryDate).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, churchID uuid.UUID, category string, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM finance_entries WHERE church_id = $1 AND category = $2 AND id = $3`,
		churchID, category, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Total is the sum of one category in one currency.
type Total struct {
	Category    string `json:"category"`
	Currency    string `json:"currency"`
	AmountCents int64  `json:"amount_cents"`
	Entries     int    `json:"entries"`
}

// Totals sums a church's ledgers between from and to (inclusive).
func (r *Repository) Totals(ctx context.Context, churchID uuid.UUID, from, to time.Time) ([]Total, error) {
	rows, err := r.db.Query(ctx, `SELECT category, currency, SUM(amount_cents), COUNT(*) FROM finance_entries
		WHERE church_id = $1 AND entry_date BETWEEN $2 AND $3
		GROUP BY category, currency ORDER BY category, currency`, churchID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Total
	for rows.Next() {
		var t Total
		if err := rows.Scan(&t.Category, &t.Currency, &t.AmountCents, &t.Entries); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
