package rest

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/pix-gateway/internal/ledger"
	"github.com/frahmantamala/pix-gateway/internal/transport/middleware"
	"github.com/frahmantamala/pix-gateway/internal/webhook"
	"github.com/frahmantamala/pix-gateway/internal/withdrawal"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, webhookHandler *webhook.Handler, withdrawalHandler *withdrawal.Handler, ledgerHandler *ledger.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Provider deliveries live outside the API prefix; this is the URL
	// registered at the provider dashboard.
	if webhookHandler != nil {
		router.Post("/webhooks/{provider}", webhookHandler.HandleProviderWebhook)
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if webhookHandler != nil {
			r.Get("/webhook-attempts", webhookHandler.ListAttempts)
		}

		if withdrawalHandler != nil {
			r.Route("/withdrawals", func(wr chi.Router) {
				wr.Post("/", withdrawalHandler.CreateWithdrawal) // POST /withdrawals
				wr.Get("/{id}", withdrawalHandler.GetWithdrawal) // GET /withdrawals/:id
			})
		}

		if ledgerHandler != nil {
			r.Get("/users/{userID}/balance", ledgerHandler.GetBalance)
		}
	})
}
