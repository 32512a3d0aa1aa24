package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus tracks the payment lifecycle.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment records a settled token purchase.
type Payment struct {
	ID          uuid.UUID       `json:"id"`
	ProfileID   uuid.UUID       `json:"profile_id"`
	Provider    string          `json:"provider"`
	Reference   string          `json:"reference"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
	Tokens      int64           `json:"tokens"`
	Status      PaymentStatus   `json:"status"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ChargeSucceeded is the normalized content of a successful provider charge.
type ChargeSucceeded struct {
	Reference   string
	ProfileID   uuid.UUID
	Tokens      int64
	AmountMinor int64
	Currency    string
	Raw         json.RawMessage
}
