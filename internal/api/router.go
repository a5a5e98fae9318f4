package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-iobridge/internal/bridges/mqttbridge"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check and metrics (no auth required for basic monitoring)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Get("/channels", s.handleListChannels)

			r.Route("/outputs/{deviceID}", func(r chi.Router) {
				r.Put("/defaults", s.handleSetDefaults)
				r.Put("/{index}", s.handleSetOutput)
			})

			r.Post("/states/resync", s.handleResync)

			r.Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth returns the bridge health. Unhealthy maps to 503 so load
// balancers and container probes can act on it.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": s.version,
		})
		return
	}

	msg := s.health.Health()
	status := http.StatusOK
	if msg.Status == mqttbridge.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, msg)
}
