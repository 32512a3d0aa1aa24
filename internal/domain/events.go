package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func newDraft(agg AggregateType, aggID string, evt EventType, payload any) OutboxDraft {
	body, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   aggID,
		EventType:     evt,
		PartitionKey:  aggID,
		Headers:       json.RawMessage(`{}`),
		Payload:       body,
		OccurredAt:    time.Now(),
	}
}

// NewTokensPostedEvent creates the wallet event for a token ledger entry.
func NewTokensPostedEvent(entry *TokenEntry) OutboxDraft {
	return newDraft(AggregateWallet, entry.ProfileID.String(), EventTokensPosted, entry)
}

// NewGameCreatedEvent is emitted when an admin opens a new grid.
func NewGameCreatedEvent(g *Game) OutboxDraft {
	return newDraft(AggregateGame, g.ID.String(), EventGameCreated, g)
}

// NewGameClosedEvent is emitted when the grid fills up.
func NewGameClosedEvent(gameID uuid.UUID, totalPicks int) OutboxDraft {
	return newDraft(AggregateGame, gameID.String(), EventGameClosed, map[string]any{
		"game_id":     gameID.String(),
		"total_picks": totalPicks,
	})
}

// NewGameRevealedEvent is emitted once a winning number is fixed.
func NewGameRevealedEvent(g *Game) OutboxDraft {
	return newDraft(AggregateGame, g.ID.String(), EventGameRevealed, g)
}

// NewPicksReservedEvent is emitted for each committed reservation batch.
// Partitioned by game so a consumer sees a game's picks in order.
func NewPicksReservedEvent(gameID, userID uuid.UUID, numbers []int) OutboxDraft {
	return newDraft(AggregateGame, gameID.String(), EventPicksReserved, map[string]any{
		"game_id": gameID.String(),
		"user_id": userID.String(),
		"numbers": numbers,
	})
}

// NewSessionStartedEvent is emitted when a card-pull session begins.
func NewSessionStartedEvent(s *GameSession) OutboxDraft {
	return newDraft(AggregateSession, s.ID.String(), EventSessionStarted, s)
}

// NewSessionPulledEvent is emitted after every card pull.
func NewSessionPulledEvent(p SessionPull) OutboxDraft {
	payload := map[string]any{
		"session_id":    p.SessionID.String(),
		"user_id":       p.UserID.String(),
		"attempts":      p.Attempts,
		"is_active":     p.IsActive,
		"has_won_prize": p.HasWonPrize,
	}
	if p.RewardWonName != nil {
		payload["reward"] = *p.RewardWonName
	}
	if p.RewardCategory != nil {
		payload["category"] = string(*p.RewardCategory)
	}
	return newDraft(AggregateSession, p.SessionID.String(), EventSessionPulled, payload)
}
