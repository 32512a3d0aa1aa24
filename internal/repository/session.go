package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/luckygrid/platform/internal/domain"
)

const sessionColumns = `id, user_id, attempts_remaining, is_active, has_won_prize,
	reward_won_name, reward_category, start_time, end_time, duration_ms`

type sessionRepo struct{}

// NewSessionRepository returns a pgx-backed SessionRepository.
func NewSessionRepository() SessionRepository {
	return &sessionRepo{}
}

func (r *sessionRepo) FindActive(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.GameSession, error) {
	row := db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM game_sessions
		WHERE user_id = $1 AND is_active
		LIMIT 1`, userID)
	return scanSession(row)
}

// Create relies on the partial unique index over active sessions per user;
// a second active session surfaces as a unique violation.
func (r *sessionRepo) Create(ctx context.Context, db DBTX, userID uuid.UUID, attempts int) (*domain.GameSession, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO game_sessions (user_id, attempts_remaining, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING `+sessionColumns, userID, attempts)
	s, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("insert session returned no row")
	}
	return s, nil
}

func (r *sessionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.GameSession, error) {
	row := db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *sessionRepo) ApplyPull(ctx context.Context, db DBTX, pull domain.SessionPull) (*domain.GameSession, error) {
	var category *string
	if pull.RewardCategory != nil {
		c := string(*pull.RewardCategory)
		category = &c
	}
	row := db.QueryRow(ctx, `
		UPDATE game_sessions
		SET attempts_remaining = $4,
		    is_active = $5,
		    has_won_prize = $6,
		    reward_won_name = $7,
		    reward_category = $8,
		    end_time = $9,
		    duration_ms = $10
		WHERE id = $1 AND user_id = $2 AND is_active AND attempts_remaining = $3
		RETURNING `+sessionColumns,
		pull.SessionID, pull.UserID, pull.PrevAttempts,
		pull.Attempts, pull.IsActive, pull.HasWonPrize,
		pull.RewardWonName, category, pull.EndTime, pull.DurationMs,
	)
	return scanSession(row)
}

func (r *sessionRepo) FastestWins(ctx context.Context, db DBTX, category domain.Category, limit int) ([]domain.FastestWin, error) {
	rows, err := db.Query(ctx, `
		SELECT gs.user_id, COALESCE(p.name, ''), COALESCE(gs.reward_won_name, ''), gs.duration_ms, gs.end_time
		FROM game_sessions gs
		LEFT JOIN profiles p ON p.id = gs.user_id
		WHERE gs.has_won_prize AND gs.reward_category = $1
		  AND gs.duration_ms IS NOT NULL AND gs.end_time IS NOT NULL
		ORDER BY gs.duration_ms ASC
		LIMIT $2`, string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("query fastest wins: %w", err)
	}
	defer rows.Close()

	var out []domain.FastestWin
	for rows.Next() {
		var w domain.FastestWin
		if err := rows.Scan(&w.UserID, &w.Name, &w.RewardName, &w.DurationMs, &w.EndTime); err != nil {
			return nil, fmt.Errorf("scan fastest win: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*domain.GameSession, error) {
	var s domain.GameSession
	var category *string
	err := row.Scan(&s.ID, &s.UserID, &s.AttemptsRemaining, &s.IsActive, &s.HasWonPrize,
		&s.RewardWonName, &category, &s.StartTime, &s.EndTime, &s.DurationMs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if category != nil {
		c := domain.Category(*category)
		s.RewardCategory = &c
	}
	return &s, nil
}
