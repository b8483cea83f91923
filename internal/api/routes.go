package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and configures the Chi router
func NewRouter(h *Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/estimates", h.GetEstimates)
		r.Get("/sites", h.ListSites)
		r.Get("/cache", h.ListCache)
		r.Delete("/cache/{site}", h.InvalidateCache)
	})

	return r
}
