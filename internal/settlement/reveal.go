// Package settlement fixes lucky grid outcomes and settles card-pull sessions.
package settlement

import (
	"context"
	"log/slog"

	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/infra"
	"github.com/luckygrid/platform/internal/metrics"
)

// RevealEngine picks and publishes the winning number of the current game.
// Callers are responsible for admin authorization.
type RevealEngine struct {
	store    RevealStore
	rng      NumberSource
	notifier RevealNotifier
	retry    infra.RetryPolicy
	logger   *slog.Logger
}

// NewRevealEngine creates a reveal engine. A nil notifier disables notifications.
func NewRevealEngine(store RevealStore, rng NumberSource, notifier RevealNotifier, retry infra.RetryPolicy, logger *slog.Logger) *RevealEngine {
	if notifier == nil {
		notifier = noopRevealNotifier{}
	}
	return &RevealEngine{store: store, rng: rng, notifier: notifier, retry: retry, logger: logger}
}

// Reveal fixes the winning number of the most recent active or closed game.
// A non-nil override is used as the winning number after range validation;
// otherwise the number is drawn uniformly from [1, range].
func (e *RevealEngine) Reveal(ctx context.Context, override *int) (*domain.RevealResult, error) {
	game, err := infra.Retry(ctx, e.retry, e.store.LatestRevealable)
	if err != nil {
		return nil, domain.StoreError("load game to reveal", err)
	}
	if game == nil {
		return nil, domain.ErrNoGameToReveal()
	}

	var winning int
	if override != nil {
		if !game.Contains(*override) {
			return nil, domain.ErrInvalidOverride(game.Range)
		}
		winning = *override
	} else {
		winning, err = e.rng.RandomInt(ctx, 1, game.Range)
		if err != nil {
			return nil, domain.ErrInternal("draw winning number", err)
		}
	}

	// Not retried: a repeat after an unacknowledged commit would report the
	// game as already revealed.
	revealed, err := e.store.MarkRevealed(ctx, game.ID, winning)
	if err != nil {
		return nil, domain.StoreError("mark game revealed", err)
	}
	if revealed == nil {
		return nil, domain.ErrNoGameToReveal()
	}

	result := &domain.RevealResult{Game: revealed, WinningNumber: winning}

	pick, err := infra.Retry(ctx, e.retry, func(ctx context.Context) (*domain.Pick, error) {
		return e.store.PickByNumber(ctx, revealed.ID, winning)
	})
	if err != nil {
		metrics.RecordUnresolvedReveal()
		e.logger.Error("winner lookup failed after reveal",
			"severity", "critical",
			"reconcile", true,
			"game_id", revealed.ID,
			"winning_number", winning,
			"manual", override != nil,
			"error", err,
		)
		return nil, domain.ErrWinnerUnresolved(revealed.ID.String(), winning, err)
	}
	if pick != nil {
		result.WinnerPick = pick
		profile, err := e.store.IncrementWins(ctx, pick.UserID)
		if err != nil {
			e.logger.Error("win counter not incremented", "game_id", revealed.ID, "user_id", pick.UserID, "error", err)
		}
		result.WinnerProfile = profile
	}

	metrics.RecordReveal(result.WinnerPick != nil, override != nil)
	e.logger.Info("game revealed",
		"game_id", revealed.ID,
		"winning_number", winning,
		"manual", override != nil,
		"has_winner", result.WinnerPick != nil,
	)

	e.notifier.GameRevealed(result)
	return result, nil
}
