package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/", h.HandleGetAnalytics)                           // Dashboard payload
		r.Get("/placeholder-series", h.HandleGetPlaceholderSeries) // Empty-history chart series
	})
}
