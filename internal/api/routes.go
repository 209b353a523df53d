package api

import (
	"log/slog"
	"time"

	"secretmessag.es/config"
	"secretmessag.es/internal/message"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(svc *message.Service, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	h := NewHandler(svc, cfg, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health
	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/messages", func(r chi.Router) {
			r.Post("/", h.CreateMessage)
			r.Get("/{id}", h.GetMessage)
			r.Post("/{id}/decrypt", h.DecryptMessage)
		})
		r.Post("/housekeeping", h.Housekeeping)
		r.Get("/stats", h.Stats)
	})

	// Frontend
	r.Get("/", h.Index)
	r.Get("/m/{id}", h.ViewPage)

	return r
}
