package routers

import (
	"cvone/interview/internal/handlers"
	"cvone/interview/internal/metrics"

	"github.com/go-chi/chi/v5"
)

func HealthRoutes(router *chi.Mux, healthHandler *handlers.HealthHandler) {
	router.Get("/healthz", healthHandler.HealthzHandler)
	router.Get("/readyz", healthHandler.ReadyzHandler)
	router.Get("/api/v1/interviews/healthz", healthHandler.HealthzHandler)
	router.Method("GET", "/metrics", metrics.Handler())
}
