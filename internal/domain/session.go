package domain

import (
	"time"

	"github.com/google/uuid"
)

// InitialAttempts is the number of card pulls granted per session.
const InitialAttempts = 3

// GameSession is one card-pull mini-game session.
type GameSession struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	IsActive          bool       `json:"is_active"`
	HasWonPrize       bool       `json:"has_won_prize"`
	RewardWonName     *string    `json:"reward_won_name,omitempty"`
	RewardCategory    *Category  `json:"reward_category,omitempty"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	DurationMs        *int64     `json:"duration_ms,omitempty"`
}

// SessionPull is the conditional state transition produced by one pull.
// Stores apply it only if the session is still active with PrevAttempts left.
type SessionPull struct {
	SessionID      uuid.UUID
	UserID         uuid.UUID
	PrevAttempts   int
	Attempts       int
	IsActive       bool
	HasWonPrize    bool
	RewardWonName  *string
	RewardCategory *Category
	EndTime        *time.Time
	DurationMs     *int64
}

// PullOutcome is the visible result of a single card pull.
type PullOutcome struct {
	Outcome    string   `json:"outcome"`
	PrizeName  string   `json:"prizeName"`
	Category   Category `json:"category"`
	IsWinner   bool     `json:"isWinner"`
	DurationMs *int64   `json:"duration"`
}

// PullResult is returned by a card pull.
type PullResult struct {
	Result  PullOutcome  `json:"result"`
	Session *GameSession `json:"session"`
}

// FastestWin is a card-pull leaderboard row.
type FastestWin struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	RewardName string    `json:"reward_name"`
	DurationMs int64     `json:"duration_ms"`
	EndTime    time.Time `json:"end_time"`
}
