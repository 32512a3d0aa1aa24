package notify

import (
	"log/slog"

	"github.com/luckygrid/platform/internal/domain"
)

// Listener receives grid and reveal events. Implementations must not block.
type Listener interface {
	PicksReserved(claimant domain.Claimant, game *domain.Game, numbers []int)
	GameClosed(game *domain.Game, totalPicks int)
	GameRevealed(result *domain.RevealResult)
}

// Mailer turns grid events into queued email.
type Mailer struct {
	dispatcher *Dispatcher
	admins     []string
	logger     *slog.Logger
}

// NewMailer creates a Mailer. admins receive reveal summaries and full-grid
// notices.
func NewMailer(dispatcher *Dispatcher, admins []string, logger *slog.Logger) *Mailer {
	return &Mailer{dispatcher: dispatcher, admins: admins, logger: logger}
}

func (m *Mailer) enqueue(msg Message, err error) {
	if err != nil {
		m.logger.Error("notification render failed", "kind", msg.Kind, "error", err)
		return
	}
	m.dispatcher.Enqueue(msg)
}

// PicksReserved confirms the reserved numbers to the claimant.
func (m *Mailer) PicksReserved(claimant domain.Claimant, _ *domain.Game, numbers []int) {
	if claimant.Email == "" {
		return
	}
	m.enqueue(PicksConfirmation(claimant.Email, numbers))
}

// GameClosed tells admins the grid is full.
func (m *Mailer) GameClosed(game *domain.Game, totalPicks int) {
	for _, to := range m.admins {
		m.enqueue(GameClosedNotice(to, game, totalPicks))
	}
}

// GameRevealed sends the admin summary and congratulates the winner.
func (m *Mailer) GameRevealed(result *domain.RevealResult) {
	for _, to := range m.admins {
		m.enqueue(RevealSummary(to, result))
	}
	if w := result.WinnerProfile; w != nil && w.Email != "" {
		m.enqueue(WinnerCongratulation(w, result.WinningNumber))
	}
}

// Fanout forwards every event to each listener in order.
type Fanout []Listener

func (f Fanout) PicksReserved(claimant domain.Claimant, game *domain.Game, numbers []int) {
	for _, l := range f {
		l.PicksReserved(claimant, game, numbers)
	}
}

func (f Fanout) GameClosed(game *domain.Game, totalPicks int) {
	for _, l := range f {
		l.GameClosed(game, totalPicks)
	}
}

func (f Fanout) GameRevealed(result *domain.RevealResult) {
	for _, l := range f {
		l.GameRevealed(result)
	}
}
