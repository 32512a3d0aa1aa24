package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/luckygrid/platform/internal/auth"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/grid"
	"github.com/luckygrid/platform/internal/settlement"
)

// GridHandler serves the lucky grid game.
type GridHandler struct {
	engine *grid.Engine
	games  *grid.Games
	reveal *settlement.RevealEngine
	logger *slog.Logger
}

// NewGridHandler creates a new GridHandler.
func NewGridHandler(engine *grid.Engine, games *grid.Games, reveal *settlement.RevealEngine, logger *slog.Logger) *GridHandler {
	return &GridHandler{engine: engine, games: games, reveal: reveal, logger: logger}
}

type pickRequest struct {
	Numbers []int `json:"numbers"`
}

type pickedNumber struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
}

type pickResponse struct {
	Message     string         `json:"message"`
	Picks       []pickedNumber `json:"picks"`
	CostCharged int            `json:"costCharged"`
	Balance     int64          `json:"balance"`
	GameClosed  bool           `json:"gameClosed"`
}

// Active handles GET /api/lucky-grid/active.
func (h *GridHandler) Active(w http.ResponseWriter, r *http.Request) {
	view, err := h.games.Active(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

// Pick handles POST /api/lucky-grid/pick.
func (h *GridHandler) Pick(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	var req pickRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrInvalidInput("numbers must be a non-empty list of integers"))
		return
	}

	res, err := h.engine.ReservePicks(r.Context(), domain.Claimant{UserID: id.UserID, Email: id.Email}, req.Numbers)
	if err != nil {
		RespondError(w, err)
		return
	}

	picks := make([]pickedNumber, len(res.Picks))
	for i, p := range res.Picks {
		picks[i] = pickedNumber{ID: p.ID.String(), Number: p.Number}
	}
	RespondJSON(w, http.StatusCreated, pickResponse{
		Message:     fmt.Sprintf("Reserved %d number(s)", len(picks)),
		Picks:       picks,
		CostCharged: res.CostCharged,
		Balance:     res.Balance,
		GameClosed:  res.GameClosed,
	})
}

// LastRevealed handles GET /api/lucky-grid/last-revealed.
func (h *GridHandler) LastRevealed(w http.ResponseWriter, r *http.Request) {
	view, err := h.games.LastRevealed(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

// Closed handles GET /api/lucky-grid/closed.
func (h *GridHandler) Closed(w http.ResponseWriter, r *http.Request) {
	game, err := h.games.LatestClosed(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]*domain.Game{"game": game})
}

type createGameRequest struct {
	Range int `json:"range"`
}

// Create handles POST /api/lucky-grid/create (admin).
func (h *GridHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := DecodeOptionalJSON(r, &req); err != nil {
		RespondError(w, domain.ErrInvalidInput("range must be an integer"))
		return
	}
	game, err := h.games.CreateGame(r.Context(), req.Range)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]any{"message": "New game created", "game": game})
}

type revealRequest struct {
	ManualNumber json.RawMessage `json:"manualNumber"`
}

type revealResponse struct {
	WinningNumber int             `json:"winningNumber"`
	WinnerPick    *domain.Pick    `json:"winnerPick"`
	WinnerProfile *domain.Profile `json:"winnerProfile"`
	Game          *domain.Game    `json:"game"`
}

// Reveal handles POST /api/lucky-grid/reveal (admin).
func (h *GridHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	var req revealRequest
	if err := DecodeOptionalJSON(r, &req); err != nil {
		RespondError(w, domain.ErrInvalidInput("malformed reveal request"))
		return
	}
	override, err := parseManualNumber(req.ManualNumber)
	if err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.reveal.Reveal(r.Context(), override)
	if err != nil {
		RespondError(w, err)
		return
	}
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		h.logger.Info("game revealed by admin", "admin", id.Email, "game_id", res.Game.ID, "manual", override != nil)
	}
	RespondJSON(w, http.StatusOK, revealResponse{
		WinningNumber: res.WinningNumber,
		WinnerPick:    res.WinnerPick,
		WinnerProfile: res.WinnerProfile,
		Game:          res.Game,
	})
}

// parseManualNumber accepts an integer or an integer string. Absent, null and
// empty string mean "draw randomly".
func parseManualNumber(raw json.RawMessage) (*int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, domain.ErrInvalidOverride(0)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
	} else {
		text = string(raw)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, domain.ErrInvalidOverride(0)
	}
	return &n, nil
}
