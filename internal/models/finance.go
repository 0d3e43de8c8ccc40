package models

import (
	"time"

	"github.com/google/uuid"
)

// FinanceEntry is one ledger line (tithe, offering, pledge, expense, ...).
type FinanceEntry struct {
	ID          uuid.UUID  `json:"id"`
	ChurchID    uuid.UUID  `json:"church_id"`
	Category    string     `json:"category"`
	MemberID    *uuid.UUID `json:"member_id,omitempty"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	Description string     `json:"description,omitempty"`
	EntryDate   time.Time  `json:"entry_date"`
	RecordedBy  uuid.UUID  `json:"recorded_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
