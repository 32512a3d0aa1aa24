package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns a health check endpoint. An unreachable store
// answers 503 DB_WAKEUP_FAILED so clients know to retry shortly.
func HealthHandler(store Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			logger.Warn("health check failed", "error", err)
			RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"code":    "DB_WAKEUP_FAILED",
				"message": "database is waking up, try again shortly",
			})
			return
		}
		RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
