package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the platform role of a user. System roles operate across churches; church roles belong to
// exactly one home church.
type Role string

const (
	RoleSuperAdmin   Role = "superadmin"
	RoleSupportAdmin Role = "supportadmin"

	RoleChurchAdmin Role = "churchadmin"
	RolePastor      Role = "pastor"
	RoleSecretary   Role = "secretary"
	RoleTreasurer   Role = "treasurer"
	RoleUsher       Role = "usher"
)

// IsSystem reports whether r is a system role (no home church).
func (r Role) IsSystem() bool {
	return r == RoleSuperAdmin || r == RoleSupportAdmin
}

// User is the acting principal.
type User struct {
	ID           uuid.UUID  `json:"id"`
	ChurchID     *uuid.UUID `json:"church_id,omitempty"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID  `json:"id"`
	ChurchID  *uuid.UUID `json:"church_id,omitempty"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		ChurchID:  u.ChurchID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}
