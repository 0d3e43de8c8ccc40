package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/covenant-hq/church-backend/internal/access"
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/permissions"
)

// UserStore is the user lookup the identity resolver needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// IdentityResolver turns a credential into the acting principal.
type IdentityResolver struct {
	jwt   *JWTService
	users UserStore
}

// NewIdentityResolver creates an identity resolver.
func NewIdentityResolver(jwt *JWTService, users UserStore) *IdentityResolver {
	return &IdentityResolver{jwt: jwt, users: users}
}

// Resolve validates token, loads the principal, and normalizes its role. A token is only accepted by
// the client it was issued to: admin-scope tokens by the admin portal, church-scope tokens by the
// church app. Deactivated principals may read but not write.
func (r *IdentityResolver) Resolve(ctx context.Context, token, method string, adminPortal bool) (*models.User, error) {
	if token == "" {
		return nil, access.Unauthenticated("Not authorized, no token")
	}
	claims, err := r.jwt.Validate(token)
	if err != nil {
		return nil, access.Unauthenticated("Not authorized, token failed")
	}
	if claims.Scope != scopeFor(adminPortal) {
		return nil, access.Unauthenticated("Not authorized, token issued for another application")
	}
	user, err := r.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, access.Unauthenticated("Not authorized, user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load principal: %w", err)
	}
	user.Role = permissions.NormalizeRole(string(user.Role))
	if !user.IsActive && permissions.IsMutating(method) {
		return nil, access.AccountDeactivated()
	}
	return user, nil
}

func scopeFor(adminPortal bool) string {
	if adminPortal {
		return ScopeAdmin
	}
	return ScopeChurch
}
