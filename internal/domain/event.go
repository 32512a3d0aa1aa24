package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventGameCreated    EventType = "luckygrid.game.created"
	EventGameClosed     EventType = "luckygrid.game.closed"
	EventGameRevealed   EventType = "luckygrid.game.revealed"
	EventPicksReserved  EventType = "luckygrid.picks.reserved"
	EventTokensPosted   EventType = "luckygrid.tokens.posted"
	EventSessionStarted EventType = "luckygrid.session.started"
	EventSessionPulled  EventType = "luckygrid.session.pulled"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateGame    AggregateType = "game"
	AggregateWallet  AggregateType = "wallet"
	AggregateSession AggregateType = "session"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	ID            int64           `json:"-"`
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
