package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/luckygrid/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ProfileRepository provides access to profiles.
type ProfileRepository interface {
	// FindByID returns a profile by ID.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Profile, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE) and returns the profile.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Profile, error)

	// Ensure inserts the profile if missing and refreshes its email otherwise.
	Ensure(ctx context.Context, db DBTX, id uuid.UUID, email string) (*domain.Profile, error)

	// Update applies the non-nil fields of upd. Returns nil if the profile does not exist.
	Update(ctx context.Context, db DBTX, id uuid.UUID, upd domain.ProfileUpdate) (*domain.Profile, error)

	// AdjustBalance adds delta to token_balance using server-side arithmetic.
	// The update only applies if the result stays non-negative; otherwise nil is returned.
	AdjustBalance(ctx context.Context, db DBTX, id uuid.UUID, delta int64) (*domain.Profile, error)

	// IncrementWins adds one to total_wins.
	IncrementWins(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Profile, error)

	// TopWinners returns profiles ordered by total_wins DESC.
	TopWinners(ctx context.Context, db DBTX, limit int) ([]domain.LeaderboardEntry, error)

	// List returns profiles, newest first.
	List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Profile, error)

	// Totals returns the profile count and the sum of token balances.
	Totals(ctx context.Context, db DBTX) (count int, tokens int64, err error)
}

// TokenEntryRepository provides access to the append-only token_ledger.
type TokenEntryRepository interface {
	// FindExisting checks the idempotency index for a previously posted credit.
	FindExisting(ctx context.Context, db DBTX, key domain.CreditKey) (*domain.TokenEntry, error)

	// Insert creates a ledger entry with the post-update balance snapshot.
	Insert(ctx context.Context, db DBTX, params domain.PostTokenEntryParams, balanceAfter int64) (*domain.TokenEntry, error)

	// ListByProfile returns entries for a profile, newest first, with cursor pagination.
	ListByProfile(ctx context.Context, db DBTX, profileID uuid.UUID, cursor *uuid.UUID, limit int) ([]domain.TokenEntry, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the state change).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns pending events in insertion order.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished stamps published_at on the given rows. Published rows are
	// kept for audit.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}

// GameRepository provides access to lucky_games.
type GameRepository interface {
	Create(ctx context.Context, db DBTX, gameRange int) (*domain.Game, error)

	// CompleteActive moves any active game to completed.
	CompleteActive(ctx context.Context, db DBTX) error

	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Game, error)

	// LockForShare returns the game under a shared row lock so that a
	// concurrent status change waits for the caller's transaction.
	LockForShare(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Game, error)

	// Latest returns the most recently created game with one of the statuses.
	Latest(ctx context.Context, db DBTX, statuses ...domain.GameStatus) (*domain.Game, error)

	// Close transitions an active game to closed. Reports whether a row changed.
	Close(ctx context.Context, db DBTX, id uuid.UUID) (bool, error)

	// MarkRevealed fixes the winning number of an active or closed game.
	// Returns nil if the game was not revealable.
	MarkRevealed(ctx context.Context, db DBTX, id uuid.UUID, winningNumber int) (*domain.Game, error)

	List(ctx context.Context, db DBTX, status domain.GameStatus, limit int) ([]domain.Game, error)

	CountByStatus(ctx context.Context, db DBTX) (map[domain.GameStatus]int, error)
}

// PickRepository provides access to lucky_picks.
type PickRepository interface {
	// Claimed returns the subset of numbers already picked in the game.
	Claimed(ctx context.Context, db DBTX, gameID uuid.UUID, numbers []int) ([]int, error)

	// Insert adds one pick. A duplicate (game, number) surfaces the driver's
	// unique violation.
	Insert(ctx context.Context, db DBTX, gameID, userID uuid.UUID, number int) (*domain.Pick, error)

	Count(ctx context.Context, db DBTX, gameID uuid.UUID) (int, error)
	CountAll(ctx context.Context, db DBTX) (int, error)
	List(ctx context.Context, db DBTX, gameID uuid.UUID) ([]domain.Pick, error)
	FindByNumber(ctx context.Context, db DBTX, gameID uuid.UUID, number int) (*domain.Pick, error)

	// Participants groups a game's picks by user with profile details.
	Participants(ctx context.Context, db DBTX, gameID uuid.UUID) ([]domain.ParticipantPicks, error)
}

// SessionRepository provides access to game_sessions.
type SessionRepository interface {
	FindActive(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.GameSession, error)
	Create(ctx context.Context, db DBTX, userID uuid.UUID, attempts int) (*domain.GameSession, error)
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.GameSession, error)

	// ApplyPull writes the pull if the session is still active with
	// pull.PrevAttempts remaining. Returns nil otherwise.
	ApplyPull(ctx context.Context, db DBTX, pull domain.SessionPull) (*domain.GameSession, error)

	FastestWins(ctx context.Context, db DBTX, category domain.Category, limit int) ([]domain.FastestWin, error)
}

// PaymentRepository provides access to payments.
type PaymentRepository interface {
	// Create inserts a payment. Returns false if (provider, reference) already exists.
	Create(ctx context.Context, db DBTX, p *domain.Payment) (bool, error)
	FindByReference(ctx context.Context, db DBTX, provider, reference string) (*domain.Payment, error)
	List(ctx context.Context, db DBTX, limit, offset int) ([]domain.PaymentView, error)

	// Revenue sums amount_minor over completed payments.
	Revenue(ctx context.Context, db DBTX) (int64, error)
}

func ensureJSON(data json.RawMessage) json.RawMessage {
	if data == nil {
		return json.RawMessage(`{}`)
	}
	return data
}
