// Package server wires configuration, routing, and middleware around the
// reminder engine.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/barrdunn/dutywatch-backend/internal/api"
	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// NewRouter builds the HTTP surface: the v1 API plus the Prometheus
// scrape endpoint.
func NewRouter(engine core.Engine, clock core.Clock) *chi.Mux {
	h := api.NewHandler(engine, clock)

	r := chi.NewRouter()
	r.Use(api.RequestID)
	r.Use(api.RequestLogger)
	r.Use(api.LimitBody)
	r.Use(api.ValidateContentType)

	r.Get("/v1/health", h.Health)
	r.Get("/v1/pairings", h.ListPairings)
	r.Get("/v1/pairings/{pairingID}/plan", h.GetPlan)
	r.Post("/v1/acknowledge", h.Acknowledge)
	r.Get("/v1/policy", h.GetPolicy)
	r.Put("/v1/policy", h.PutPolicy)
	r.Post("/v1/devices", h.RegisterDevice)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
