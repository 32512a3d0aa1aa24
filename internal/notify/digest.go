package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
)

// DigestStore is the read side the daily digest needs.
type DigestStore interface {
	ActiveGame(ctx context.Context) (*domain.Game, error)
	Participants(ctx context.Context, gameID uuid.UUID) ([]domain.ParticipantPicks, error)
	CountPicks(ctx context.Context, gameID uuid.UUID) (int, error)
}

// Digest emails every participant of the active game their numbers and
// how many numbers are still unclaimed.
type Digest struct {
	store      DigestStore
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewDigest creates a Digest job.
func NewDigest(store DigestStore, dispatcher *Dispatcher, logger *slog.Logger) *Digest {
	return &Digest{store: store, dispatcher: dispatcher, logger: logger}
}

// Run queues one digest per participant and returns how many were queued.
func (d *Digest) Run(ctx context.Context) (int, error) {
	game, err := d.store.ActiveGame(ctx)
	if err != nil {
		return 0, fmt.Errorf("load active game: %w", err)
	}
	if game == nil {
		d.logger.Info("digest skipped, no active game")
		return 0, nil
	}

	total, err := d.store.CountPicks(ctx, game.ID)
	if err != nil {
		return 0, fmt.Errorf("count picks: %w", err)
	}
	participants, err := d.store.Participants(ctx, game.ID)
	if err != nil {
		return 0, fmt.Errorf("load participants: %w", err)
	}

	remaining := max(game.Range-total, 0)
	queued := 0
	for _, p := range participants {
		if p.Email == "" {
			continue
		}
		numbers := slices.Clone(p.Numbers)
		slices.Sort(numbers)
		msg, err := DailyDigest(p.Email, numbers, remaining)
		if err != nil {
			d.logger.Error("digest render failed", "user_id", p.UserID, "error", err)
			continue
		}
		if d.dispatcher.Enqueue(msg) {
			queued++
		}
	}

	d.logger.Info("digest queued", "game_id", game.ID, "participants", len(participants), "queued", queued, "remaining", remaining)
	return queued, nil
}
