package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/luckygrid/platform/internal/domain"
)

const pickColumns = `id, game_id, user_id, number, picked_at`

type pickRepo struct{}

// NewPickRepository returns a pgx-backed PickRepository.
func NewPickRepository() PickRepository {
	return &pickRepo{}
}

func (r *pickRepo) Claimed(ctx context.Context, db DBTX, gameID uuid.UUID, numbers []int) ([]int, error) {
	rows, err := db.Query(ctx, `
		SELECT number FROM lucky_picks
		WHERE game_id = $1 AND number = ANY($2)`, gameID, numbers)
	if err != nil {
		return nil, fmt.Errorf("query claimed numbers: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func (r *pickRepo) Insert(ctx context.Context, db DBTX, gameID, userID uuid.UUID, number int) (*domain.Pick, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO lucky_picks (game_id, user_id, number) VALUES ($1, $2, $3)
		RETURNING `+pickColumns, gameID, userID, number)
	var p domain.Pick
	if err := row.Scan(&p.ID, &p.GameID, &p.UserID, &p.Number, &p.PickedAt); err != nil {
		return nil, fmt.Errorf("insert pick %d: %w", number, err)
	}
	return &p, nil
}

func (r *pickRepo) Count(ctx context.Context, db DBTX, gameID uuid.UUID) (int, error) {
	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM lucky_picks WHERE game_id = $1`, gameID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count picks: %w", err)
	}
	return n, nil
}

func (r *pickRepo) CountAll(ctx context.Context, db DBTX) (int, error) {
	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM lucky_picks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count all picks: %w", err)
	}
	return n, nil
}

func (r *pickRepo) List(ctx context.Context, db DBTX, gameID uuid.UUID) ([]domain.Pick, error) {
	rows, err := db.Query(ctx, `
		SELECT `+pickColumns+`
		FROM lucky_picks
		WHERE game_id = $1
		ORDER BY number ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query picks: %w", err)
	}
	defer rows.Close()

	picks := []domain.Pick{}
	for rows.Next() {
		var p domain.Pick
		if err := rows.Scan(&p.ID, &p.GameID, &p.UserID, &p.Number, &p.PickedAt); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

func (r *pickRepo) FindByNumber(ctx context.Context, db DBTX, gameID uuid.UUID, number int) (*domain.Pick, error) {
	var p domain.Pick
	err := db.QueryRow(ctx, `
		SELECT `+pickColumns+`
		FROM lucky_picks
		WHERE game_id = $1 AND number = $2`, gameID, number).
		Scan(&p.ID, &p.GameID, &p.UserID, &p.Number, &p.PickedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan pick: %w", err)
	}
	return &p, nil
}

func (r *pickRepo) Participants(ctx context.Context, db DBTX, gameID uuid.UUID) ([]domain.ParticipantPicks, error) {
	rows, err := db.Query(ctx, `
		SELECT lp.user_id, COALESCE(p.email, ''), COALESCE(p.name, ''),
		       array_agg(lp.number ORDER BY lp.number)
		FROM lucky_picks lp
		LEFT JOIN profiles p ON p.id = lp.user_id
		WHERE lp.game_id = $1
		GROUP BY lp.user_id, p.email, p.name
		ORDER BY MIN(lp.picked_at) ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	out := []domain.ParticipantPicks{}
	for rows.Next() {
		var pp domain.ParticipantPicks
		if err := rows.Scan(&pp.UserID, &pp.Email, &pp.Name, &pp.Numbers); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}
