package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/grid"
	"github.com/luckygrid/platform/internal/handler"
)

// GameAdminHandler exposes grid state to admins.
type GameAdminHandler struct {
	games *grid.Games
}

// NewGameAdminHandler creates a new GameAdminHandler.
func NewGameAdminHandler(games *grid.Games) *GameAdminHandler {
	return &GameAdminHandler{games: games}
}

// GameStatus handles GET /api/admin/game-status.
func (h *GameAdminHandler) GameStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.games.Status(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, status)
}

// Entries handles GET /api/admin/games/{id}/entries.
func (h *GameAdminHandler) Entries(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid game id"))
		return
	}
	entries, err := h.games.Entries(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, entries)
}

// History handles GET /api/admin/game-history?limit=.
func (h *GameAdminHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := h.games.History(r.Context(), limit)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, games)
}
