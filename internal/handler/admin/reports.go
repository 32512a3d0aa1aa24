package admin

import (
	"net/http"

	"github.com/luckygrid/platform/internal/handler"
	"github.com/luckygrid/platform/internal/service"
)

// ReportsHandler handles admin reporting.
type ReportsHandler struct {
	admin *service.AdminService
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(admin *service.AdminService) *ReportsHandler {
	return &ReportsHandler{admin: admin}
}

// GetStats handles GET /api/admin/stats.
func (h *ReportsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, stats)
}

// ListPayments handles GET /api/admin/payments?limit=&offset=.
func (h *ReportsHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	payments, err := h.admin.Payments(r.Context(), limit, offset)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, payments)
}
