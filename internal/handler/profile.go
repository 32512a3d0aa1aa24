package handler

import (
	"net/http"

	"github.com/luckygrid/platform/internal/auth"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/service"
)

// ProfileHandler handles the caller's own profile.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Ensure handles POST /api/profile. It is safe to call on every sign-in.
func (h *ProfileHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	p, err := h.profiles.Ensure(r.Context(), id.UserID, id.Email)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}

// Update handles PUT /api/profile.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	var upd domain.ProfileUpdate
	if err := DecodeJSON(r, &upd); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	p, err := h.profiles.Update(r.Context(), id.UserID, upd)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}

// Dashboard handles GET /api/dashboard.
func (h *ProfileHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	dash, err := h.profiles.Dashboard(r.Context(), id.UserID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, dash)
}
