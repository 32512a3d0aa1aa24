package grid

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/infra"
)

// Games serves the admin lifecycle and the public read views of the grid.
type Games struct {
	store  GameStore
	retry  infra.RetryPolicy
	logger *slog.Logger
}

// NewGames creates a Games service.
func NewGames(store GameStore, retry infra.RetryPolicy, logger *slog.Logger) *Games {
	return &Games{store: store, retry: retry, logger: logger}
}

// ActiveView is the current game and its claimed numbers.
type ActiveView struct {
	Game  *domain.Game  `json:"game"`
	Picks []domain.Pick `json:"picks"`
}

// RevealedView is the last revealed game and its winning pick, if any.
type RevealedView struct {
	Game   *domain.Game `json:"game"`
	Winner *domain.Pick `json:"winner"`
}

// StatusView summarizes the grid for admins.
type StatusView struct {
	ActiveGame     *domain.Game `json:"activeGame"`
	LastClosedGame *domain.Game `json:"lastClosedGame"`
}

// CreateGame opens a new game. Any active game is completed first.
// A zero range selects domain.DefaultGameRange.
func (g *Games) CreateGame(ctx context.Context, gameRange int) (*domain.Game, error) {
	if gameRange == 0 {
		gameRange = domain.DefaultGameRange
	}
	if err := domain.ValidateGameRange(gameRange); err != nil {
		return nil, domain.ErrInvalidInput(err.Error())
	}
	game, err := g.store.CreateGame(ctx, gameRange)
	if err != nil {
		return nil, domain.StoreError("create game", err)
	}
	g.logger.Info("game created", "game_id", game.ID, "range", game.Range)
	return game, nil
}

// Active returns the active game with its picks. Game is nil when none is open.
func (g *Games) Active(ctx context.Context) (*ActiveView, error) {
	game, err := infra.Retry(ctx, g.retry, g.store.ActiveGame)
	if err != nil {
		return nil, domain.StoreError("load active game", err)
	}
	view := &ActiveView{Game: game, Picks: []domain.Pick{}}
	if game == nil {
		return view, nil
	}
	picks, err := infra.Retry(ctx, g.retry, func(ctx context.Context) ([]domain.Pick, error) {
		return g.store.ListPicks(ctx, game.ID)
	})
	if err != nil {
		return nil, domain.StoreError("list picks", err)
	}
	if picks != nil {
		view.Picks = picks
	}
	return view, nil
}

// LastRevealed returns the most recently revealed game and the winning pick.
func (g *Games) LastRevealed(ctx context.Context) (*RevealedView, error) {
	game, err := g.latest(ctx, domain.GameRevealed)
	if err != nil {
		return nil, err
	}
	view := &RevealedView{Game: game}
	if game == nil || game.WinningNumber == nil {
		return view, nil
	}
	winner, err := infra.Retry(ctx, g.retry, func(ctx context.Context) (*domain.Pick, error) {
		return g.store.PickByNumber(ctx, game.ID, *game.WinningNumber)
	})
	if err != nil {
		return nil, domain.StoreError("load winning pick", err)
	}
	view.Winner = winner
	return view, nil
}

// LatestClosed returns the most recently closed game, or nil.
func (g *Games) LatestClosed(ctx context.Context) (*domain.Game, error) {
	return g.latest(ctx, domain.GameClosed)
}

// Status returns the active and last closed games.
func (g *Games) Status(ctx context.Context) (*StatusView, error) {
	active, err := infra.Retry(ctx, g.retry, g.store.ActiveGame)
	if err != nil {
		return nil, domain.StoreError("load active game", err)
	}
	closed, err := g.latest(ctx, domain.GameClosed)
	if err != nil {
		return nil, err
	}
	return &StatusView{ActiveGame: active, LastClosedGame: closed}, nil
}

// Entries returns a game's picks grouped by participant.
func (g *Games) Entries(ctx context.Context, gameID uuid.UUID) ([]domain.ParticipantPicks, error) {
	game, err := infra.Retry(ctx, g.retry, func(ctx context.Context) (*domain.Game, error) {
		return g.store.GetGame(ctx, gameID)
	})
	if err != nil {
		return nil, domain.StoreError("load game", err)
	}
	if game == nil {
		return nil, domain.ErrNotFound("game", gameID.String())
	}
	entries, err := infra.Retry(ctx, g.retry, func(ctx context.Context) ([]domain.ParticipantPicks, error) {
		return g.store.Participants(ctx, gameID)
	})
	if err != nil {
		return nil, domain.StoreError("load participants", err)
	}
	return entries, nil
}

// History returns revealed games, newest first.
func (g *Games) History(ctx context.Context, limit int) ([]domain.Game, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	games, err := infra.Retry(ctx, g.retry, func(ctx context.Context) ([]domain.Game, error) {
		return g.store.ListGames(ctx, domain.GameRevealed, limit)
	})
	if err != nil {
		return nil, domain.StoreError("list games", err)
	}
	return games, nil
}

func (g *Games) latest(ctx context.Context, status domain.GameStatus) (*domain.Game, error) {
	game, err := infra.Retry(ctx, g.retry, func(ctx context.Context) (*domain.Game, error) {
		return g.store.LatestGame(ctx, status)
	})
	if err != nil {
		return nil, domain.StoreError("load latest game", err)
	}
	return game, nil
}
