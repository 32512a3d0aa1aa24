package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/luckygrid/platform/internal/domain"
)

// ExecuteCredit adds tokens.
// Pattern: Lock → Idempotency → PostLedgerEntry
func (e *Engine) ExecuteCredit(ctx context.Context, tx pgx.Tx, params domain.CreditParams) (*domain.CommandResult, error) {
	if err := domain.ValidatePositiveAmount(params.Amount); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	profile, err := e.LockProfileForUpdate(ctx, tx, params.ProfileID)
	if err != nil {
		return nil, err
	}

	if params.ExternalRef != "" {
		existing, err := e.FindExistingCredit(ctx, tx, domain.CreditKey{
			ProfileID:   params.ProfileID,
			Source:      params.Source,
			ExternalRef: params.ExternalRef,
		})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &domain.CommandResult{Entry: existing, Profile: profile, Idempotent: true}, nil
		}
	}

	meta := ensureJSON(params.Metadata)
	if params.ExternalRef != "" {
		meta = mergeMeta(meta, map[string]interface{}{"reference": params.ExternalRef})
	}

	entry, updated, err := e.PostLedgerEntry(ctx, tx, domain.PostTokenEntryParams{
		ProfileID:   params.ProfileID,
		Type:        domain.TokenCredit,
		Source:      params.Source,
		Amount:      params.Amount,
		ExternalRef: strPtr(params.ExternalRef),
		Metadata:    meta,
	})
	if err != nil {
		return nil, fmt.Errorf("credit post: %w", err)
	}

	return &domain.CommandResult{
		Entry:   entry,
		Profile: updated,
		Events:  []domain.OutboxDraft{domain.NewTokensPostedEvent(entry)},
	}, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ensureJSON(data json.RawMessage) json.RawMessage {
	if data == nil {
		return json.RawMessage(`{}`)
	}
	return data
}

func mergeMeta(base json.RawMessage, extra map[string]interface{}) json.RawMessage {
	merged := make(map[string]interface{})
	if len(base) > 0 {
		_ = json.Unmarshal(base, &merged)
	}
	for k, v := range extra {
		merged[k] = v
	}
	out, _ := json.Marshal(merged)
	return out
}
