package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/live"
)

// LiveHandler upgrades clients onto the live grid feed.
type LiveHandler struct {
	feed   *live.Feed
	logger *slog.Logger
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(feed *live.Feed, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{feed: feed, logger: logger}
}

// Subscribe handles GET /api/lucky-grid/live?gameId=<uuid>. Without gameId
// the client only joins the lobby.
func (h *LiveHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var gameID *uuid.UUID
	if raw := r.URL.Query().Get("gameId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(w, domain.ErrInvalidInput("gameId must be a game id"))
			return
		}
		gameID = &id
	}
	if err := h.feed.Serve(w, r, gameID); err != nil {
		h.logger.Debug("live upgrade failed", "error", err)
	}
}
