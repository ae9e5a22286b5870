package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridpulse/gridpulse/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router) {
	h := handlers.New(s.store, s.pipeline, s.graph)

	r.Get("/healthz", h.Health)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Zones
		r.Get("/zones", h.ListZones)
		r.Get("/zones/{zoneID}", h.GetZone)
		r.Get("/zones/{zoneID}/readings", h.ListReadings)
		r.Get("/zones/{zoneID}/forecast", h.GetForecast)
		r.Get("/zones/{zoneID}/risk", h.GetRiskScore)
		r.Get("/zones/{zoneID}/risk/history", h.ListRiskHistory)
		r.Get("/zones/{zoneID}/recommendations", h.GetRecommendations)

		// Alerts and constraint events
		r.Get("/alerts", h.ListAlerts)
		r.Get("/events", h.ListEvents)

		// Cycles
		r.Get("/cycles", h.ListCycles)
		r.Get("/cycles/latest", h.LatestCycle)
		r.Post("/cycles", h.RunCycle)
	})
}
