package domain

import (
	"time"

	"github.com/google/uuid"
)

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	TotalRevenue        int64              `json:"totalRevenue"` // minor currency units
	TotalUsers          int                `json:"totalUsers"`
	ActiveGames         int                `json:"activeGames"`
	GamesByStatus       map[GameStatus]int `json:"gamesByStatus"`
	TotalPicks          int                `json:"totalPicks"`
	TokensInCirculation int64              `json:"tokensInCirculation"`
}

// UserSummary is a profile row as listed to admins.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone_number"`
	Tokens    int64     `json:"tokens"`
	TotalWins int       `json:"total_wins"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// NewUserSummary converts a profile, substituting "N/A" for blank contact fields.
func NewUserSummary(p Profile) UserSummary {
	return UserSummary{
		ID:        p.ID,
		Email:     p.Email,
		Name:      orNA(p.Name),
		Phone:     orNA(p.Phone),
		Tokens:    p.TokenBalance,
		TotalWins: p.TotalWins,
		JoinedAt:  p.CreatedAt,
	}
}

// PaymentView is a payment joined with its payer's name.
type PaymentView struct {
	Payment
	UserName string `json:"user_name"`
}

// GrantTokensRequest is the admin give-tokens payload.
type GrantTokensRequest struct {
	UserID      uuid.UUID `json:"userId"`
	TokenAmount int64     `json:"tokenAmount"`
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
