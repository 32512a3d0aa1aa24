package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/luckygrid/platform/internal/provider"
	"github.com/luckygrid/platform/internal/service"
)

// WebhookHandler handles payment provider callbacks.
type WebhookHandler struct {
	paymentSvc *service.PaymentService
	logger     *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(paymentSvc *service.PaymentService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{paymentSvc: paymentSvc, logger: logger}
}

// HandlePaystackWebhook handles POST /api/paystack-webhook.
// The raw body is needed for signature verification.
func (h *WebhookHandler) HandlePaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.paymentSvc.HandlePaystackWebhook(r.Context(), body, r.Header.Get(provider.PaystackSignatureHeader)); err != nil {
		h.logger.Warn("process paystack webhook", "error", err)
		RespondError(w, err)
		return
	}

	// Paystack expects 200 OK
	w.WriteHeader(http.StatusOK)
}
