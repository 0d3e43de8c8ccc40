package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/pkg/database"
)

// Repository handles audit log persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an audit log repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

const auditColumns = `id, user_id, user_name, user_role, church_id, module, action, resource_id, method, path,
	ip_address, browser, os, device_type, device, status_code, status, created_at`

// Write inserts one audit record. It makes Repository a Sink.
func (r *Repository) Write(ctx context.Context, e *models.AuditLog) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.UserID, e.UserName, e.UserRole, e.ChurchID, e.Module, e.Action, e.ResourceID, e.Method, e.Path,
		e.IPAddress, e.Browser, e.OS, e.DeviceType, e.Device, e.StatusCode, e.Status, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Filter narrows an audit log listing.
type Filter struct {
	ChurchID *uuid.UUID
	Module   string
	Status   string
	Limit    int
	Offset   int
}

// List returns one page of audit logs, newest first, and the total match count.
func (r *Repository) List(ctx context.Context, f Filter) ([]*models.AuditLog, int, error) {
	where := `WHERE ($1::uuid IS NULL OR church_id = $1) AND ($2 = '' OR module = $2) AND ($3 = '' OR status = $3)`
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs `+where, f.ChurchID, f.Module, f.Status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	rows, err := r.db.Query(ctx, `SELECT `+auditColumns+` FROM audit_logs `+where+`
		ORDER BY created_at DESC LIMIT $4 OFFSET $5`, f.ChurchID, f.Module, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	list, err := collect(rows)
	return list, total, err
}

// ListBetween returns every audit log created in [from, to), oldest first.
func (r *Repository) ListBetween(ctx context.Context, from, to time.Time) ([]*models.AuditLog, error) {
	rows, err := r.db.Query(ctx, `SELECT `+auditColumns+` FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*models.AuditLog, error) {
	defer rows.Close()
	var list []*models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.UserRole, &e.ChurchID, &e.Module, &e.Action, &e.ResourceID,
			&e.Method, &e.Path, &e.IPAddress, &e.Browser, &e.OS, &e.DeviceType, &e.Device, &e.StatusCode, &e.Status,
			&e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
