package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/luckygrid/platform/internal/domain"
)

// ExecuteDebit spends tokens. There is no lock or read-before-write: the
// guarded update in PostLedgerEntry rejects an overdraw on its own.
func (e *Engine) ExecuteDebit(ctx context.Context, tx pgx.Tx, params domain.DebitParams) (*domain.CommandResult, error) {
	if err := domain.ValidatePositiveAmount(params.Amount); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	entry, updated, err := e.PostLedgerEntry(ctx, tx, domain.PostTokenEntryParams{
		ProfileID: params.ProfileID,
		Type:      domain.TokenDebit,
		Source:    params.Source,
		Amount:    params.Amount,
		Metadata:  ensureJSON(params.Metadata),
	})
	if err != nil {
		return nil, fmt.Errorf("debit post: %w", err)
	}

	return &domain.CommandResult{
		Entry:   entry,
		Profile: updated,
		Events:  []domain.OutboxDraft{domain.NewTokensPostedEvent(entry)},
	}, nil
}
