/**
 * @description
 * This file sets up the HTTP router for the payment-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * Route groups:
 * - The webhook delivery endpoint is public; its requests authenticate
 *   themselves through the HMAC signature header, never through middleware.
 * - /internal/* endpoints are service-to-service and require the shared key.
 * - User-facing read endpoints require a session JWT.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PaymentRoutes creates and returns a new router for the payment service.
func PaymentRoutes(h *PaymentHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Webhook deliveries authenticate via signature, not middleware.
	r.Post("/api/dwolla/webhook", h.WebhookHandler)

	// Service-to-service endpoints.
	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/customers", h.CreateCustomerHandler)
		r.Get("/customers/{userID}", h.GetCustomerHandler)
		r.Put("/customers/{userID}", h.UpdateCustomerHandler)
		r.Post("/customers/{userID}/deactivate", h.DeactivateCustomerHandler)
		r.Get("/customers/{userID}/transfers", h.ListTransfersHandler)

		r.Post("/funding-sources", h.CreateFundingSourceHandler)
		r.Get("/funding-sources/{accountID}", h.GetFundingSourceHandler)
		r.Delete("/funding-sources/{accountID}", h.RemoveFundingSourceHandler)

		r.Post("/transfers", h.CreateTransferHandler)
		r.Get("/transfers/{transactionID}", h.GetTransferHandler)
		r.Post("/transfers/{transactionID}/cancel", h.CancelTransferHandler)

		r.Post("/webhook-subscriptions/rotate", h.RotateWebhookSecretHandler)
	})

	// User-facing read endpoints.
	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(jwksURL))

		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/funding-sources", h.ListFundingSourcesHandler)
	})

	return r
}
