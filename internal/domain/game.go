package domain

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is the lifecycle state of a lucky grid game.
type GameStatus string

const (
	GameActive    GameStatus = "active"
	GameClosed    GameStatus = "closed"
	GameRevealed  GameStatus = "revealed"
	GameCompleted GameStatus = "completed"
)

// Revealable reports whether a game in this status may still be revealed.
func (s GameStatus) Revealable() bool {
	return s == GameActive || s == GameClosed
}

// DefaultGameRange is used when an admin creates a game without a range.
const DefaultGameRange = 100

// AllowedGameRanges lists the grid sizes an admin may create.
var AllowedGameRanges = []int{20, 30, 50, 100, 200, 500, 1000}

// Game is one lucky grid round over the numbers [1, Range].
type Game struct {
	ID            uuid.UUID  `json:"id"`
	Range         int        `json:"range"`
	Status        GameStatus `json:"status"`
	WinningNumber *int       `json:"winning_number,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	RevealedAt    *time.Time `json:"revealed_at,omitempty"`
}

// Contains reports whether n is a cell of the game's grid.
func (g *Game) Contains(n int) bool {
	return n >= 1 && n <= g.Range
}

// Pick is a single claimed number within a game.
type Pick struct {
	ID       uuid.UUID `json:"id"`
	GameID   uuid.UUID `json:"game_id"`
	UserID   uuid.UUID `json:"user_id"`
	Number   int       `json:"number"`
	PickedAt time.Time `json:"picked_at"`
}

// Claimant is the verified identity behind a pick request.
type Claimant struct {
	UserID uuid.UUID
	Email  string
}

// ReservationResult is returned by a successful pick reservation.
type ReservationResult struct {
	Game        *Game  `json:"game"`
	Picks       []Pick `json:"picks"`
	CostCharged int    `json:"cost_charged"`
	Balance     int64  `json:"balance"`
	GameClosed  bool   `json:"game_closed"`
}

// Numbers returns the reserved numbers in pick order.
func (r *ReservationResult) Numbers() []int {
	out := make([]int, len(r.Picks))
	for i, p := range r.Picks {
		out[i] = p.Number
	}
	return out
}

// RevealResult is returned by a reveal.
type RevealResult struct {
	Game          *Game    `json:"game"`
	WinningNumber int      `json:"winning_number"`
	WinnerPick    *Pick    `json:"winner_pick"`
	WinnerProfile *Profile `json:"winner_profile"`
}

// ParticipantPicks groups one user's numbers within a game.
type ParticipantPicks struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Numbers []int     `json:"numbers"`
}
