package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a user's wallet and game state.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	TokenBalance int64     `json:"token_balance"`
	TotalWins    int       `json:"total_wins"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName falls back to the email local part when no name is set.
func (p *Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	for i := 0; i < len(p.Email); i++ {
		if p.Email[i] == '@' {
			return p.Email[:i]
		}
	}
	return p.Email
}

// ProfileUpdate carries the user-editable profile fields.
type ProfileUpdate struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// LeaderboardEntry ranks a profile by total wins.
type LeaderboardEntry struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	TotalWins int       `json:"total_wins"`
}
