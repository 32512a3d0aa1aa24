package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/luckygrid/platform/internal/domain"
)

const tokenEntryColumns = `id, profile_id, type, source, amount, balance_after, external_ref, metadata, created_at`

type tokenEntryRepo struct{}

// NewTokenEntryRepository returns a pgx-backed TokenEntryRepository.
func NewTokenEntryRepository() TokenEntryRepository {
	return &tokenEntryRepo{}
}

func (r *tokenEntryRepo) FindExisting(ctx context.Context, db DBTX, key domain.CreditKey) (*domain.TokenEntry, error) {
	row := db.QueryRow(ctx, `
		SELECT `+tokenEntryColumns+`
		FROM token_ledger
		WHERE profile_id = $1 AND source = $2 AND external_ref = $3`,
		key.ProfileID, string(key.Source), key.ExternalRef)
	return scanTokenEntry(row)
}

func (r *tokenEntryRepo) Insert(ctx context.Context, db DBTX, params domain.PostTokenEntryParams, balanceAfter int64) (*domain.TokenEntry, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO token_ledger (profile_id, type, source, amount, balance_after, external_ref, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+tokenEntryColumns,
		params.ProfileID,
		string(params.Type),
		string(params.Source),
		params.Amount,
		balanceAfter,
		params.ExternalRef,
		ensureJSON(params.Metadata),
	)
	return scanTokenEntry(row)
}

func (r *tokenEntryRepo) ListByProfile(ctx context.Context, db DBTX, profileID uuid.UUID, cursor *uuid.UUID, limit int) ([]domain.TokenEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows pgx.Rows
	var err error
	if cursor != nil {
		rows, err = db.Query(ctx, `
			SELECT `+tokenEntryColumns+`
			FROM token_ledger
			WHERE profile_id = $1
			  AND (created_at, id) < ((SELECT created_at, id FROM token_ledger WHERE id = $2))
			ORDER BY created_at DESC, id DESC
			LIMIT $3`, profileID, *cursor, limit)
	} else {
		rows, err = db.Query(ctx, `
			SELECT `+tokenEntryColumns+`
			FROM token_ledger
			WHERE profile_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`, profileID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query token entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.TokenEntry
	for rows.Next() {
		e, err := scanTokenEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanTokenEntry(row pgx.Row) (*domain.TokenEntry, error) {
	var e domain.TokenEntry
	err := row.Scan(&e.ID, &e.ProfileID, &e.Type, &e.Source, &e.Amount, &e.BalanceAfter,
		&e.ExternalRef, &e.Metadata, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan token entry: %w", err)
	}
	return &e, nil
}
