// Package app assembles the HTTP API from its stores, engines and services.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/luckygrid/platform/internal/auth"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/grid"
	"github.com/luckygrid/platform/internal/guard"
	"github.com/luckygrid/platform/internal/handler"
	adminhandler "github.com/luckygrid/platform/internal/handler/admin"
	"github.com/luckygrid/platform/internal/infra"
	"github.com/luckygrid/platform/internal/live"
	"github.com/luckygrid/platform/internal/metrics"
	"github.com/luckygrid/platform/internal/notify"
	"github.com/luckygrid/platform/internal/provider"
	"github.com/luckygrid/platform/internal/service"
	"github.com/luckygrid/platform/internal/settlement"
)

// webhookDedupTTL covers Paystack's redelivery window.
const webhookDedupTTL = 24 * time.Hour

// Store is everything the API persists. store.Postgres and store.Memory both
// satisfy it.
type Store interface {
	grid.GameStore
	settlement.RevealStore
	settlement.SessionStore
	service.ProfileStore
	service.PaymentStore
	service.AdminStore
	handler.Pinger
}

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Store    Store
	Verifier *auth.Verifier
	Admins   auth.AdminPolicy
	RNG      settlement.NumberSource
	Prizes   domain.PrizeConfig
	Paystack *provider.PaystackProvider
	Feed     *live.Feed
	// Mailer is optional; nil disables email.
	Mailer      notify.Listener
	RateLimiter *guard.RateLimiter
	CORSOrigins []string
	Retry       infra.RetryPolicy
	Logger      *slog.Logger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) (chi.Router, error) {
	store := deps.Store
	logger := deps.Logger

	listeners := notify.Fanout{deps.Feed}
	if deps.Mailer != nil {
		listeners = append(listeners, deps.Mailer)
	}

	// Engines
	engine := grid.NewEngine(store, logger.With("component", "grid"),
		grid.WithNotifier(listeners),
		grid.WithRetryPolicy(deps.Retry),
	)
	games := grid.NewGames(store, deps.Retry, logger.With("component", "games"))
	reveal := settlement.NewRevealEngine(store, deps.RNG, listeners, deps.Retry, logger.With("component", "reveal"))
	cardPull, err := settlement.NewCardPull(store, deps.Prizes, logger.With("component", "cardpull"),
		settlement.WithPullRetry(deps.Retry),
	)
	if err != nil {
		return nil, fmt.Errorf("card pull: %w", err)
	}

	// Services
	profileSvc := service.NewProfileService(store, deps.Retry, logger)
	paymentSvc := service.NewPaymentService(store, deps.Paystack, guard.NewIdempotencyGuard(webhookDedupTTL), logger)
	adminSvc := service.NewAdminService(store, deps.Retry, logger)

	// Handlers
	gridHandler := handler.NewGridHandler(engine, games, reveal, logger)
	cardHandler := handler.NewCardPullHandler(cardPull)
	profileHandler := handler.NewProfileHandler(profileSvc)
	webhookHandler := handler.NewWebhookHandler(paymentSvc, logger)
	liveHandler := handler.NewLiveHandler(deps.Feed, logger)

	// Admin handlers
	playerAdmin := adminhandler.NewPlayerAdminHandler(adminSvc)
	reportsAdmin := adminhandler.NewReportsHandler(adminSvc)
	gameAdmin := adminhandler.NewGameAdminHandler(games)

	rateLimit := handler.RateLimit(deps.RateLimiter)
	requireAdmin := auth.RequireAdmin(deps.Admins)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(metrics.InstrumentHandler)
	r.Use(handler.CORSWithOrigins(deps.CORSOrigins...))
	r.Use(handler.JSONContentType)

	// Health and metrics (no auth)
	r.Get("/health", handler.HealthHandler(store, logger))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Webhooks (no auth, raw body required for signature verification)
		r.Post("/paystack-webhook", webhookHandler.HandlePaystackWebhook)

		// Public reads. Browsers cannot set headers on a WebSocket
		// handshake, and the feed carries no contact details.
		r.Get("/leaderboard", cardHandler.Leaderboard)
		r.Get("/lucky-grid/live", liveHandler.Subscribe)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(deps.Verifier))

			r.Route("/lucky-grid", func(r chi.Router) {
				r.Get("/active", gridHandler.Active)
				r.With(rateLimit).Post("/pick", gridHandler.Pick)
				r.Get("/last-revealed", gridHandler.LastRevealed)
				r.Get("/closed", gridHandler.Closed)

				r.With(requireAdmin).Post("/create", gridHandler.Create)
				r.With(requireAdmin).Post("/reveal", gridHandler.Reveal)
			})

			r.Post("/start-session", cardHandler.StartSession)
			r.With(rateLimit).Post("/pull-card/{sessionId}", cardHandler.PullCard)

			r.Get("/dashboard", profileHandler.Dashboard)
			r.Post("/profile", profileHandler.Ensure)
			r.Put("/profile", profileHandler.Update)

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/stats", reportsAdmin.GetStats)
				r.Get("/payments", reportsAdmin.ListPayments)
				r.Get("/users", playerAdmin.ListUsers)
				r.Post("/give-tokens", playerAdmin.GiveTokens)
				r.Get("/game-status", gameAdmin.GameStatus)
				r.Get("/game-history", gameAdmin.History)
				r.Get("/games/{id}/entries", gameAdmin.Entries)
				r.Post("/lucky-grid/create", gridHandler.Create)
				r.Post("/lucky-grid/reveal", gridHandler.Reveal)
			})
		})
	})

	return r, nil
}
