// Package live pushes grid changes to connected browsers so open grids
// update without polling.
package live

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/infra"
)

// LobbyRoom receives every game's lifecycle events.
const LobbyRoom = "lobby"

// Event names.
const (
	EventPicksReserved = "picks.reserved"
	EventGameClosed    = "game.closed"
	EventGameRevealed  = "game.revealed"
)

// GameRoom is the room for a single game's grid.
func GameRoom(id uuid.UUID) string { return "game:" + id.String() }

// PicksPayload is broadcast when numbers are claimed.
type PicksPayload struct {
	GameID  uuid.UUID `json:"game_id"`
	UserID  uuid.UUID `json:"user_id"`
	Numbers []int     `json:"numbers"`
}

// ClosedPayload is broadcast when a grid fills.
type ClosedPayload struct {
	GameID     uuid.UUID `json:"game_id"`
	TotalPicks int       `json:"total_picks"`
}

// RevealedPayload is broadcast after a reveal. Only the winner's user id is
// included; contact details never leave the server.
type RevealedPayload struct {
	GameID        uuid.UUID  `json:"game_id"`
	WinningNumber int        `json:"winning_number"`
	WinnerUserID  *uuid.UUID `json:"winner_user_id"`
}

// Feed adapts grid events to hub broadcasts.
type Feed struct {
	hub *infra.WSHub
}

// NewFeed creates a Feed on hub.
func NewFeed(hub *infra.WSHub) *Feed {
	return &Feed{hub: hub}
}

func (f *Feed) PicksReserved(claimant domain.Claimant, game *domain.Game, numbers []int) {
	f.hub.Publish(GameRoom(game.ID), EventPicksReserved, PicksPayload{
		GameID:  game.ID,
		UserID:  claimant.UserID,
		Numbers: numbers,
	})
}

func (f *Feed) GameClosed(game *domain.Game, totalPicks int) {
	payload := ClosedPayload{GameID: game.ID, TotalPicks: totalPicks}
	f.hub.Publish(GameRoom(game.ID), EventGameClosed, payload)
	f.hub.Publish(LobbyRoom, EventGameClosed, payload)
}

func (f *Feed) GameRevealed(result *domain.RevealResult) {
	payload := RevealedPayload{GameID: result.Game.ID, WinningNumber: result.WinningNumber}
	if result.WinnerPick != nil {
		id := result.WinnerPick.UserID
		payload.WinnerUserID = &id
	}
	f.hub.Publish(GameRoom(result.Game.ID), EventGameRevealed, payload)
	f.hub.Publish(LobbyRoom, EventGameRevealed, payload)
}

// Serve subscribes the connection to the lobby and, when gameID is set, to
// that game's room. It blocks until the client disconnects.
func (f *Feed) Serve(w http.ResponseWriter, r *http.Request, gameID *uuid.UUID) error {
	rooms := []string{LobbyRoom}
	if gameID != nil {
		rooms = append(rooms, GameRoom(*gameID))
	}
	return f.hub.Serve(w, r, rooms...)
}
