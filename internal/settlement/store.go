package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
)

// RevealStore is the persistence port of the reveal engine.
// Reads return (nil, nil) when nothing matches.
type RevealStore interface {
	// LatestRevealable returns the most recently created active or closed game.
	LatestRevealable(ctx context.Context) (*domain.Game, error)

	// MarkRevealed sets the winning number if the game is still active or
	// closed, returning nil when another caller revealed it first.
	MarkRevealed(ctx context.Context, gameID uuid.UUID, winningNumber int) (*domain.Game, error)

	// PickByNumber returns the pick holding number in the game.
	PickByNumber(ctx context.Context, gameID uuid.UUID, number int) (*domain.Pick, error)

	// IncrementWins adds one to the user's win counter in a single statement.
	IncrementWins(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}

// SessionStore is the persistence port of the card-pull engine.
type SessionStore interface {
	// ActiveSession returns the user's active session, if any.
	ActiveSession(ctx context.Context, userID uuid.UUID) (*domain.GameSession, error)

	// StartSession debits one token and creates an active session in one
	// unit of work. It fails with CodeInsufficientTokens, CodeProfileUnavailable
	// or CodeSessionAlreadyActive.
	StartSession(ctx context.Context, userID uuid.UUID, attempts int) (*domain.GameSession, error)

	// GetSession returns a session by id.
	GetSession(ctx context.Context, id uuid.UUID) (*domain.GameSession, error)

	// ApplyPull writes the pull only if the session is still active with
	// pull.PrevAttempts remaining, returning nil otherwise. A winning pull
	// increments the user's win counter in the same unit of work.
	ApplyPull(ctx context.Context, pull domain.SessionPull) (*domain.GameSession, error)

	// FastestWins returns winning sessions of the category by ascending duration.
	FastestWins(ctx context.Context, category domain.Category, limit int) ([]domain.FastestWin, error)
}

// NumberSource draws a uniform integer in [min, max].
type NumberSource interface {
	RandomInt(ctx context.Context, min, max int) (int, error)
}

// RevealNotifier receives best-effort reveal notifications.
// Implementations must not block.
type RevealNotifier interface {
	GameRevealed(result *domain.RevealResult)
}

type noopRevealNotifier struct{}

func (noopRevealNotifier) GameRevealed(*domain.RevealResult) {}
