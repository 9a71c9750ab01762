package router

import (
	"github.com/go-chi/chi/v5"
)

// registerHealthRoutes registra los probes y /metrics.
func registerHealthRoutes(r chi.Router, deps Deps) {
	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)

	if deps.Metrics != nil {
		r.Method("GET", "/metrics", deps.Metrics)
	}
}
