package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TokenEntryType is the direction of a token ledger entry.
type TokenEntryType string

const (
	TokenDebit  TokenEntryType = "debit"
	TokenCredit TokenEntryType = "credit"
)

// TokenSource names what caused a balance change.
type TokenSource string

const (
	SourcePickReservation TokenSource = "pick_reservation"
	SourceSessionStart    TokenSource = "session_start"
	SourceAdminGrant      TokenSource = "admin_grant"
	SourcePayment         TokenSource = "payment"
)

// TokenEntry is one append-only row of the token ledger.
type TokenEntry struct {
	ID           uuid.UUID       `json:"id"`
	ProfileID    uuid.UUID       `json:"profile_id"`
	Type         TokenEntryType  `json:"type"`
	Source       TokenSource     `json:"source"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	ExternalRef  *string         `json:"external_ref,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PostTokenEntryParams is the input for ledger.Engine.PostLedgerEntry.
type PostTokenEntryParams struct {
	ProfileID   uuid.UUID
	Type        TokenEntryType
	Source      TokenSource
	Amount      int64
	ExternalRef *string
	Metadata    json.RawMessage
}

// DebitParams is the input for a token debit command.
type DebitParams struct {
	ProfileID uuid.UUID
	Source    TokenSource
	Amount    int64
	Metadata  json.RawMessage
}

// CreditParams is the input for a token credit command.
// ExternalRef, when set, makes the credit idempotent per (profile, source).
type CreditParams struct {
	ProfileID   uuid.UUID
	Source      TokenSource
	Amount      int64
	ExternalRef string
	Metadata    json.RawMessage
}

// CreditKey identifies a previously posted credit.
type CreditKey struct {
	ProfileID   uuid.UUID
	Source      TokenSource
	ExternalRef string
}

// CommandResult is returned by all ledger commands.
type CommandResult struct {
	Entry      *TokenEntry   `json:"entry"`
	Profile    *Profile      `json:"profile"`
	Idempotent bool          `json:"idempotent"`
	Events     []OutboxDraft `json:"-"`
}
