package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/pix-deposit/api"
	"github.com/frahmantamala/pix-deposit/internal/checkout"
	"github.com/frahmantamala/pix-deposit/internal/payment"
	"github.com/frahmantamala/pix-deposit/internal/session"
	"github.com/frahmantamala/pix-deposit/internal/transport/middleware"
	"github.com/frahmantamala/pix-deposit/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type Routes struct {
	Health         *HealthHandler
	Checkout       *checkout.Handler
	Payment        *payment.Handler
	Cookies        *session.Manager
	AllowedOrigins []string
}

func RegisterAllRoutes(router *chi.Mux, routes Routes, logger *slog.Logger) error {
	doc, err := middleware.LoadOpenAPI(api.OpenAPI)
	if err != nil {
		return err
	}
	validator, err := middleware.OpenAPIValidator(doc, logger)
	if err != nil {
		return err
	}

	// Apply global middleware
	router.Use(middleware.CORS(routes.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.OpenAPI)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(validator)
		if routes.Cookies != nil {
			r.Use(middleware.Session(routes.Cookies))
		}

		if routes.Health != nil {
			r.Get("/health", routes.Health.healthCheckHandler)
			r.Get("/ping", routes.Health.pingHandler)
		}

		if routes.Checkout != nil {
			r.Get("/identity/{cpf}", routes.Checkout.LookupIdentity)
			r.Post("/amount/parse", routes.Checkout.ParseAmount)
			r.Post("/checkout", routes.Checkout.Checkout)
		}

		if routes.Payment != nil {
			r.Route("/payments", func(pr chi.Router) {
				pr.Get("/current", routes.Payment.Current)    // GET /payments/current
				pr.Get("/{id}", routes.Payment.GetByID)       // GET /payments/:id
				pr.Get("/{id}/status", routes.Payment.Status) // GET /payments/:id/status
				pr.Get("/{id}/events", routes.Payment.Events) // GET /payments/:id/events (SSE)
			})
		}
	})

	return nil
}
