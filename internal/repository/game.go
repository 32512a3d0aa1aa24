package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/luckygrid/platform/internal/domain"
)

const gameColumns = `id, range, status, winning_number, created_at, revealed_at`

type gameRepo struct{}

// NewGameRepository returns a pgx-backed GameRepository.
func NewGameRepository() GameRepository {
	return &gameRepo{}
}

func (r *gameRepo) Create(ctx context.Context, db DBTX, gameRange int) (*domain.Game, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO lucky_games (range, status) VALUES ($1, 'active')
		RETURNING `+gameColumns, gameRange)
	return scanGame(row)
}

func (r *gameRepo) CompleteActive(ctx context.Context, db DBTX) error {
	_, err := db.Exec(ctx, `UPDATE lucky_games SET status = 'completed' WHERE status = 'active'`)
	if err != nil {
		return fmt.Errorf("complete active games: %w", err)
	}
	return nil
}

func (r *gameRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Game, error) {
	row := db.QueryRow(ctx, `SELECT `+gameColumns+` FROM lucky_games WHERE id = $1`, id)
	return scanGame(row)
}

func (r *gameRepo) LockForShare(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Game, error) {
	row := tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM lucky_games WHERE id = $1 FOR SHARE`, id)
	return scanGame(row)
}

func (r *gameRepo) Latest(ctx context.Context, db DBTX, statuses ...domain.GameStatus) (*domain.Game, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	row := db.QueryRow(ctx, `
		SELECT `+gameColumns+`
		FROM lucky_games
		WHERE status = ANY($1)
		ORDER BY created_at DESC
		LIMIT 1`, names)
	return scanGame(row)
}

func (r *gameRepo) Close(ctx context.Context, db DBTX, id uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `UPDATE lucky_games SET status = 'closed' WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return false, fmt.Errorf("close game: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *gameRepo) MarkRevealed(ctx context.Context, db DBTX, id uuid.UUID, winningNumber int) (*domain.Game, error) {
	row := db.QueryRow(ctx, `
		UPDATE lucky_games
		SET status = 'revealed', winning_number = $2, revealed_at = now()
		WHERE id = $1 AND status IN ('active', 'closed')
		RETURNING `+gameColumns, id, winningNumber)
	return scanGame(row)
}

func (r *gameRepo) List(ctx context.Context, db DBTX, status domain.GameStatus, limit int) ([]domain.Game, error) {
	rows, err := db.Query(ctx, `
		SELECT `+gameColumns+`
		FROM lucky_games
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func (r *gameRepo) CountByStatus(ctx context.Context, db DBTX) (map[domain.GameStatus]int, error) {
	rows, err := db.Query(ctx, `SELECT status, COUNT(*) FROM lucky_games GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count games: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.GameStatus]int)
	for rows.Next() {
		var status domain.GameStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan game count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanGame(row pgx.Row) (*domain.Game, error) {
	var g domain.Game
	err := row.Scan(&g.ID, &g.Range, &g.Status, &g.WinningNumber, &g.CreatedAt, &g.RevealedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan game: %w", err)
	}
	return &g, nil
}
