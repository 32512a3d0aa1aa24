package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/luckygrid/platform/internal/domain"
)

const profileColumns = `id, email, name, phone, token_balance, total_wins, created_at, updated_at`

type profileRepo struct{}

// NewProfileRepository returns a pgx-backed ProfileRepository.
func NewProfileRepository() ProfileRepository {
	return &profileRepo{}
}

func (r *profileRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Profile, error) {
	row := db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	return scanProfile(row)
}

func (r *profileRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Profile, error) {
	row := tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id)
	return scanProfile(row)
}

func (r *profileRepo) Ensure(ctx context.Context, db DBTX, id uuid.UUID, email string) (*domain.Profile, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO profiles (id, email) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		  SET email = COALESCE(NULLIF(EXCLUDED.email, ''), profiles.email),
		      updated_at = CASE WHEN EXCLUDED.email <> '' AND EXCLUDED.email <> profiles.email
		                        THEN now() ELSE profiles.updated_at END
		RETURNING `+profileColumns, id, email)
	return scanProfile(row)
}

func (r *profileRepo) Update(ctx context.Context, db DBTX, id uuid.UUID, upd domain.ProfileUpdate) (*domain.Profile, error) {
	row := db.QueryRow(ctx, `
		UPDATE profiles
		SET name = COALESCE($2, name),
		    phone = COALESCE($3, phone),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns, id, upd.Name, upd.Phone)
	return scanProfile(row)
}

// AdjustBalance is the only writer of token_balance. The WHERE guard makes
// an overdraw a no-op instead of a constraint error.
func (r *profileRepo) AdjustBalance(ctx context.Context, db DBTX, id uuid.UUID, delta int64) (*domain.Profile, error) {
	row := db.QueryRow(ctx, `
		UPDATE profiles
		SET token_balance = token_balance + $2, updated_at = now()
		WHERE id = $1 AND token_balance + $2 >= 0
		RETURNING `+profileColumns, id, delta)
	return scanProfile(row)
}

func (r *profileRepo) IncrementWins(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Profile, error) {
	row := db.QueryRow(ctx, `
		UPDATE profiles SET total_wins = total_wins + 1, updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns, id)
	return scanProfile(row)
}

func (r *profileRepo) TopWinners(ctx context.Context, db DBTX, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT id, name, email, total_wins
		FROM profiles
		ORDER BY total_wins DESC, id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top winners: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.TotalWins); err != nil {
			return nil, fmt.Errorf("scan top winner: %w", err)
		}
		out = append(out, domain.LeaderboardEntry{UserID: p.ID, Name: p.DisplayName(), TotalWins: p.TotalWins})
	}
	return out, rows.Err()
}

func (r *profileRepo) List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := db.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *profileRepo) Totals(ctx context.Context, db DBTX) (int, int64, error) {
	var n int
	var tokens int64
	err := db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(token_balance), 0) FROM profiles`).Scan(&n, &tokens)
	if err != nil {
		return 0, 0, fmt.Errorf("profile totals: %w", err)
	}
	return n, tokens, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Phone, &p.TokenBalance, &p.TotalWins, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}
