package grid

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
)

// Store is the persistence port of the reservation engine.
//
// Reads return (nil, nil) when the row does not exist. Infrastructure
// failures that are safe to retry are wrapped with domain.Transient.
type Store interface {
	// ActiveGame returns the single game in status active, if any.
	ActiveGame(ctx context.Context) (*domain.Game, error)

	// GetProfile returns the user's wallet row.
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)

	// ClaimedNumbers returns the subset of numbers already picked in the game.
	ClaimedNumbers(ctx context.Context, gameID uuid.UUID, numbers []int) ([]int, error)

	// ReserveAndDebit creates one pick per number and debits one token per
	// pick from the user, all or nothing. A uniqueness violation on
	// (game, number) is reported as *domain.NumberTakenError, an inactive game
	// as domain.ErrNoActiveGame and an overdraw as a CodeInsufficientTokens
	// AppError; none of them leave picks or ledger entries behind. A commit
	// whose outcome was lost is wrapped with domain.ErrCommitUnknown.
	ReserveAndDebit(ctx context.Context, gameID, userID uuid.UUID, numbers []int, meta json.RawMessage) ([]domain.Pick, *domain.Profile, error)

	// CountPicks returns the number of picks in the game.
	CountPicks(ctx context.Context, gameID uuid.UUID) (int, error)

	// CloseGame moves an active game to closed. changed is false when the
	// game had already left the active state.
	CloseGame(ctx context.Context, gameID uuid.UUID, totalPicks int) (changed bool, err error)
}

// GameStore adds the admin lifecycle and read views.
type GameStore interface {
	Store

	// CreateGame completes any active game and opens a new one, atomically.
	CreateGame(ctx context.Context, gameRange int) (*domain.Game, error)

	// LatestGame returns the most recently created game with the status.
	LatestGame(ctx context.Context, status domain.GameStatus) (*domain.Game, error)

	// GetGame returns a game by id.
	GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error)

	// ListPicks returns every pick of the game ordered by number.
	ListPicks(ctx context.Context, gameID uuid.UUID) ([]domain.Pick, error)

	// PickByNumber returns the pick holding number in the game.
	PickByNumber(ctx context.Context, gameID uuid.UUID, number int) (*domain.Pick, error)

	// Participants groups a game's picks by user, with contact details.
	Participants(ctx context.Context, gameID uuid.UUID) ([]domain.ParticipantPicks, error)

	// ListGames returns games with the status, newest first.
	ListGames(ctx context.Context, status domain.GameStatus, limit int) ([]domain.Game, error)
}

// Notifier receives best-effort reservation notifications.
// Implementations must not block.
type Notifier interface {
	PicksReserved(claimant domain.Claimant, game *domain.Game, numbers []int)
	// GameClosed fires once, for the caller whose close changed the status.
	GameClosed(game *domain.Game, totalPicks int)
}

type noopNotifier struct{}

func (noopNotifier) PicksReserved(domain.Claimant, *domain.Game, []int) {}
func (noopNotifier) GameClosed(*domain.Game, int)                       {}
