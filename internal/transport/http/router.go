package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/storefront-pipeline/internal/config"
	"github.com/storefront-pipeline/internal/transport/http/handler"
	appmiddleware "github.com/storefront-pipeline/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. The returned stop
// function releases the rate limiter's background cleanup.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, func()) {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appmiddleware.WebhookSecretHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.Verifier != nil {
		authMw = appmiddleware.Auth(deps.Verifier)
	} else {
		authMw = func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"authentication is not configured"}`))
			})
		}
	}

	// 20 requests/second, burst of 40 per producer IP on webhook ingest.
	ingestRL := appmiddleware.NewRateLimiter(rate.Limit(20), 40)
	// 5 requests/second, burst of 10 on shopper writes.
	shopperRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler(deps.Checks)
	eventH := handler.NewEventHandler(deps.Bus, deps.Logger)
	productH := handler.NewProductHandler(deps.Catalog)
	subH := handler.NewSubscriptionHandler(deps.Subscriptions)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes ────────────────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		// ── Producer webhooks ────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(ingestRL.Limit)
			r.Use(appmiddleware.RequireWebhookSecret(cfg.WebhookSecret))
			r.Post("/events/*", eventH.Publish)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Put("/products/{id}/status", productH.UpdateStatus)
			r.Get("/subscriptions", subH.List)
			r.With(shopperRL.Limit).Post("/subscriptions", subH.Create)
			r.Delete("/subscriptions/{productId}", subH.Delete)
		})
	})

	return r, func() {
		ingestRL.Stop()
		shopperRL.Stop()
	}
}
