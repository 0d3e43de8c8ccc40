package churches

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/covenant-hq/church-backend/internal/access"
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/permissions"
)

// Store is the church lookup the resolver needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Church, error)
}

// Resolver decides which church a request operates on.
type Resolver struct {
	churches Store
}

// NewResolver creates an active-church resolver.
func NewResolver(churches Store) *Resolver {
	return &Resolver{churches: churches}
}

// Resolve returns the active church for user, honouring an optional switch request. A nil context with
// nil error means "no active church" (system principals that did not ask for one). A church-role
// principal without a home church is refused.
func (r *Resolver) Resolve(ctx context.Context, user *models.User, requested *uuid.UUID) (*models.ActiveChurch, error) {
	role := permissions.NormalizeRole(string(user.Role))

	if !role.IsSystem() && user.ChurchID == nil {
		return nil, access.UnauthorizedBranchAccess()
	}
	if role.IsSystem() {
		if requested == nil {
			return nil, nil
		}
		ch, err := r.load(ctx, *requested)
		if err != nil {
			return nil, err
		}
		return &models.ActiveChurch{Church: *ch, CanEdit: role == models.RoleSuperAdmin}, nil
	}

	home := *user.ChurchID
	if requested == nil || *requested == home {
		ch, err := r.load(ctx, home)
		if err != nil {
			return nil, err
		}
		return &models.ActiveChurch{Church: *ch, CanEdit: true}, nil
	}

	homeChurch, err := r.load(ctx, home)
	if err != nil {
		return nil, err
	}
	if !homeChurch.IsHeadquarters() {
		return nil, access.UnauthorizedBranchAccess()
	}
	target, err := r.load(ctx, *requested)
	if err != nil {
		return nil, err
	}
	if target.ParentChurch == nil || *target.ParentChurch != homeChurch.ID {
		return nil, access.UnauthorizedBranchAccess()
	}
	return &models.ActiveChurch{Church: *target, CanEdit: false}, nil
}

func (r *Resolver) load(ctx context.Context, id uuid.UUID) (*models.Church, error) {
	ch, err := r.churches.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, access.ChurchContextNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load church %s: %w", id, err)
	}
	return ch, nil
}
