// Package grid implements lucky grid number reservation and the game lifecycle.
package grid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/infra"
	"github.com/luckygrid/platform/internal/metrics"
)

// Engine reserves numbers for users and closes games once their grid is full.
//
// Correctness under concurrency comes from the store: a unique constraint on
// (game, number) arbitrates races for a number, and the picks commit in the
// same transaction as a conditional debit that cannot drive a balance
// negative.
type Engine struct {
	store    Store
	notifier Notifier
	retry    infra.RetryPolicy
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the reservation notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithRetryPolicy sets the retry policy for store reads.
func WithRetryPolicy(p infra.RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// NewEngine creates a reservation engine.
func NewEngine(store Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: noopNotifier{},
		retry:    infra.DefaultRetryPolicy(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReservePicks claims the requested numbers of the active game for the user.
//
// Validation order: payload, active game, range, profile, balance against the
// de-duplicated request. Numbers lost to concurrent claimants are dropped and
// only the numbers actually reserved are charged.
func (e *Engine) ReservePicks(ctx context.Context, claimant domain.Claimant, numbers []int) (*domain.ReservationResult, error) {
	if err := domain.ValidateRequestedNumbers(numbers); err != nil {
		return nil, domain.ErrInvalidInput(err.Error())
	}

	game, err := infra.Retry(ctx, e.retry, e.store.ActiveGame)
	if err != nil {
		return nil, domain.StoreError("load active game", err)
	}
	if game == nil {
		return nil, domain.ErrNoActiveGame()
	}
	for _, n := range numbers {
		if !game.Contains(n) {
			return nil, domain.ErrOutOfRange(n, game.Range)
		}
	}

	profile, err := infra.Retry(ctx, e.retry, func(ctx context.Context) (*domain.Profile, error) {
		return e.store.GetProfile(ctx, claimant.UserID)
	})
	if err != nil {
		return nil, domain.StoreError("load profile", err)
	}
	if profile == nil {
		return nil, domain.ErrProfileUnavailable()
	}

	requested := domain.UniqueNumbers(numbers)
	if profile.TokenBalance < int64(len(requested)) {
		return nil, domain.ErrInsufficientTokens(profile.TokenBalance, int64(len(requested)))
	}

	picks, updated, err := e.reserve(ctx, game, claimant.UserID, requested)
	if err != nil {
		if domain.IsKind(err, domain.CodeAllNumbersClaimed) {
			metrics.RecordAllClaimed()
			// A full grid whose close was missed is healed here.
			if _, cerr := e.CheckAutoClose(ctx, game); cerr != nil {
				e.logger.Warn("auto-close check failed", "game_id", game.ID, "error", cerr)
			}
		}
		return nil, err
	}
	reserved := pickNumbers(picks)
	metrics.RecordPicksReserved(len(picks))

	e.notifier.PicksReserved(claimant, game, reserved)

	closed, err := e.CheckAutoClose(ctx, game)
	if err != nil {
		e.logger.Warn("auto-close check failed", "game_id", game.ID, "error", err)
	}

	e.logger.Info("picks reserved",
		"game_id", game.ID,
		"user_id", claimant.UserID,
		"requested", len(requested),
		"reserved", len(picks),
		"balance", updated.TokenBalance,
	)

	return &domain.ReservationResult{
		Game:        game,
		Picks:       picks,
		CostCharged: len(picks),
		Balance:     updated.TokenBalance,
		GameClosed:  closed,
	}, nil
}

// reserve inserts and pays for the unclaimed subset of requested in one store
// transaction. A number lost to a concurrent insert is removed and the
// remainder is retried, so the loop runs at most len(requested) times.
func (e *Engine) reserve(ctx context.Context, game *domain.Game, userID uuid.UUID, requested []int) ([]domain.Pick, *domain.Profile, error) {
	lost := make(map[int]bool)
	for {
		claimed, err := infra.Retry(ctx, e.retry, func(ctx context.Context) ([]int, error) {
			return e.store.ClaimedNumbers(ctx, game.ID, requested)
		})
		if err != nil {
			return nil, nil, domain.StoreError("scan claimed numbers", err)
		}
		for _, n := range claimed {
			lost[n] = true
		}

		toReserve := make([]int, 0, len(requested))
		for _, n := range requested {
			if !lost[n] {
				toReserve = append(toReserve, n)
			}
		}
		if len(toReserve) == 0 {
			return nil, nil, domain.ErrAllNumbersClaimed()
		}

		meta, _ := json.Marshal(map[string]any{"game_id": game.ID.String(), "numbers": toReserve})
		picks, updated, err := e.store.ReserveAndDebit(ctx, game.ID, userID, toReserve, meta)
		var taken *domain.NumberTakenError
		if errors.As(err, &taken) {
			if lost[taken.Number] || !slices.Contains(toReserve, taken.Number) {
				return nil, nil, domain.ErrInternal("reserve picks", fmt.Errorf("store reported conflict on unrequested number %d", taken.Number))
			}
			metrics.RecordPickConflict()
			e.logger.Debug("pick conflict, re-resolving", "game_id", game.ID, "number", taken.Number)
			lost[taken.Number] = true
			continue
		}
		if errors.Is(err, domain.ErrCommitUnknown) {
			metrics.RecordCriticalDebit()
			e.logger.Error("reservation settlement unconfirmed",
				"severity", "critical",
				"reconcile", true,
				"game_id", game.ID,
				"user_id", userID,
				"numbers", toReserve,
				"cost", len(toReserve),
				"error", err,
			)
			return nil, nil, domain.ErrCriticalDebitFailure(err)
		}
		if err != nil {
			return nil, nil, domain.StoreError("reserve picks", err)
		}
		return picks, updated, nil
	}
}

// CheckAutoClose closes the game once its pick count reaches the range.
// It reports whether the grid is full. Repeated calls are safe; a game that
// is already closed or revealed counts as success.
func (e *Engine) CheckAutoClose(ctx context.Context, game *domain.Game) (bool, error) {
	total, err := infra.Retry(ctx, e.retry, func(ctx context.Context) (int, error) {
		return e.store.CountPicks(ctx, game.ID)
	})
	if err != nil {
		return false, domain.StoreError("count picks", err)
	}
	if total < game.Range {
		return false, nil
	}

	changed, err := infra.Retry(ctx, e.retry, func(ctx context.Context) (bool, error) {
		return e.store.CloseGame(ctx, game.ID, total)
	})
	if err != nil {
		return false, domain.StoreError("close game", err)
	}
	if changed {
		metrics.RecordGameClosed()
		e.logger.Info("game closed", "game_id", game.ID, "total_picks", total, "range", game.Range)
		e.notifier.GameClosed(game, total)
	}
	return true, nil
}

func pickNumbers(picks []domain.Pick) []int {
	out := make([]int, len(picks))
	for i, p := range picks {
		out[i] = p.Number
	}
	return out
}
