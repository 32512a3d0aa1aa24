package admin

import (
	"net/http"
	"strconv"

	"github.com/luckygrid/platform/internal/auth"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/handler"
	"github.com/luckygrid/platform/internal/service"
)

// PlayerAdminHandler handles admin user management.
type PlayerAdminHandler struct {
	admin *service.AdminService
}

// NewPlayerAdminHandler creates a new PlayerAdminHandler.
func NewPlayerAdminHandler(admin *service.AdminService) *PlayerAdminHandler {
	return &PlayerAdminHandler{admin: admin}
}

// ListUsers handles GET /api/admin/users?limit=&offset=.
func (h *PlayerAdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	users, err := h.admin.Users(r.Context(), limit, offset)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, users)
}

// GiveTokens handles POST /api/admin/give-tokens.
func (h *PlayerAdminHandler) GiveTokens(w http.ResponseWriter, r *http.Request) {
	var req domain.GrantTokensRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("userId and a positive integer tokenAmount are required"))
		return
	}

	grantedBy := ""
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		grantedBy = id.Email
	}
	res, err := h.admin.GrantTokens(r.Context(), grantedBy, req)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{
		"message":    "Tokens granted",
		"userId":     req.UserID,
		"newBalance": res.Profile.TokenBalance,
	})
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return limit, max(offset, 0)
}
