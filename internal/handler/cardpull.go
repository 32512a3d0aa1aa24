package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/auth"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/settlement"
)

// CardPullHandler serves the card-pull mini-game.
type CardPullHandler struct {
	game *settlement.CardPull
}

// NewCardPullHandler creates a new CardPullHandler.
func NewCardPullHandler(game *settlement.CardPull) *CardPullHandler {
	return &CardPullHandler{game: game}
}

// StartSession handles POST /api/start-session.
func (h *CardPullHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	session, err := h.game.StartSession(r.Context(), id.UserID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": session.ID,
		"attempts":  session.AttemptsRemaining,
	})
}

// PullCard handles POST /api/pull-card/{sessionId}.
func (h *CardPullHandler) PullCard(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		RespondError(w, domain.ErrSessionNotFound())
		return
	}
	res, err := h.game.PullCard(r.Context(), sessionID, id.UserID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// Leaderboard handles GET /api/leaderboard.
func (h *CardPullHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.game.Leaderboard(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, rows)
}
