package models

import (
	"time"

	"github.com/google/uuid"
)

// Member is a congregation member record.
type Member struct {
	ID        uuid.UUID `json:"id"`
	ChurchID  uuid.UUID `json:"church_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
