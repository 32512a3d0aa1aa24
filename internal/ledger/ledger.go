// Package ledger posts token balance changes to the append-only token ledger.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/repository"
)

// Engine provides the foundational ledger operations:
//  1. LockProfileForUpdate: row-level pessimistic lock
//  2. FindExistingCredit: idempotency check
//  3. PostLedgerEntry: guarded balance update + append-only insert + outbox event
type Engine struct {
	profiles repository.ProfileRepository
	entries  repository.TokenEntryRepository
	outbox   repository.OutboxRepository
}

// NewEngine creates a ledger engine with the given repositories.
func NewEngine(
	profiles repository.ProfileRepository,
	entries repository.TokenEntryRepository,
	outbox repository.OutboxRepository,
) *Engine {
	return &Engine{
		profiles: profiles,
		entries:  entries,
		outbox:   outbox,
	}
}

// LockProfileForUpdate acquires a row-level lock and returns the profile.
// Must be called within a transaction.
func (e *Engine) LockProfileForUpdate(ctx context.Context, tx pgx.Tx, profileID uuid.UUID) (*domain.Profile, error) {
	profile, err := e.profiles.LockForUpdate(ctx, tx, profileID)
	if err != nil {
		return nil, fmt.Errorf("lock profile: %w", err)
	}
	if profile == nil {
		return nil, domain.ErrProfileUnavailable()
	}
	return profile, nil
}

// FindExistingCredit returns a credit previously posted under key, or nil.
func (e *Engine) FindExistingCredit(ctx context.Context, tx pgx.Tx, key domain.CreditKey) (*domain.TokenEntry, error) {
	existing, err := e.entries.FindExisting(ctx, tx, key)
	if err != nil {
		return nil, fmt.Errorf("find existing credit: %w", err)
	}
	return existing, nil
}

// PostLedgerEntry atomically moves the token balance and appends a ledger entry.
// All commands delegate to this.
//
// Steps:
//  1. Adjust token_balance with server-side arithmetic, guarded against going negative
//  2. Insert the entry with the post-update balance snapshot
//  3. Insert the outbox event
//
// All 3 steps run within the caller's transaction.
func (e *Engine) PostLedgerEntry(ctx context.Context, tx pgx.Tx, params domain.PostTokenEntryParams) (*domain.TokenEntry, *domain.Profile, error) {
	delta := params.Amount
	if params.Type == domain.TokenDebit {
		delta = -params.Amount
	}

	updated, err := e.profiles.AdjustBalance(ctx, tx, params.ProfileID, delta)
	if err != nil {
		return nil, nil, fmt.Errorf("adjust balance: %w", err)
	}
	if updated == nil {
		return nil, nil, e.explainRejectedAdjust(ctx, tx, params)
	}

	entry, err := e.entries.Insert(ctx, tx, params, updated.TokenBalance)
	if err != nil {
		return nil, nil, fmt.Errorf("insert token entry: %w", err)
	}

	if err := e.outbox.Insert(ctx, tx, domain.NewTokensPostedEvent(entry)); err != nil {
		return nil, nil, fmt.Errorf("insert outbox event: %w", err)
	}

	return entry, updated, nil
}

// explainRejectedAdjust distinguishes a missing profile from an overdraw.
func (e *Engine) explainRejectedAdjust(ctx context.Context, tx pgx.Tx, params domain.PostTokenEntryParams) error {
	profile, err := e.profiles.FindByID(ctx, tx, params.ProfileID)
	if err != nil {
		return fmt.Errorf("reload profile: %w", err)
	}
	if profile == nil {
		return domain.ErrProfileUnavailable()
	}
	return domain.ErrInsufficientTokens(profile.TokenBalance, params.Amount)
}
