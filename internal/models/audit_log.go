package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit outcome values.
const (
	AuditSuccess = "Success"
	AuditFailed  = "Failed"
)

// AuditLog is one recorded mutating request.
type AuditLog struct {
	ID         uuid.UUID  `json:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	UserName   string     `json:"user_name,omitempty"`
	UserRole   string     `json:"user_role,omitempty"`
	ChurchID   *uuid.UUID `json:"church_id,omitempty"`
	Module     string     `json:"module"`
	Action     string     `json:"action"`
	ResourceID string     `json:"resource_id,omitempty"`
	Method     string     `json:"method"`
	Path       string     `json:"path"`
	IPAddress  string     `json:"ip_address,omitempty"`
	Browser    string     `json:"browser,omitempty"`
	OS         string     `json:"os,omitempty"`
	DeviceType string     `json:"device_type,omitempty"`
	Device     string     `json:"device,omitempty"`
	StatusCode int        `json:"status_code"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}
