package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taxline/whatsapp-engine/internal/http/handlers"
	httpmiddleware "github.com/taxline/whatsapp-engine/internal/http/middleware"
	"github.com/taxline/whatsapp-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	Health           *handlers.HealthHandler
	WhatsAppWebhooks *handlers.WhatsAppWebhookHandler
	MetricsHandler   http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.HandleHealth)
	}
	if cfg.WhatsAppWebhooks != nil {
		r.Get("/webhooks/whatsapp", cfg.WhatsAppWebhooks.HandleVerify)
		r.Post("/webhooks/whatsapp", cfg.WhatsAppWebhooks.HandleMessages)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
