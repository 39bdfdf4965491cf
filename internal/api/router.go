package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency probe in handleHealth.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Bus diagnostics
		r.Route("/bus", func(r chi.Router) {
			r.Get("/", s.handleBusSnapshot)
			r.Get("/metrics", s.handleBusMetrics)
		})

		// Sensor catalogue
		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.handleListSensors)
			r.Post("/scan", s.handleScan)
			r.Get("/{rom}", s.handleGetSensor)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status. A failing database makes
// the node unhealthy; broker links are reported but do not fail the check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	components := map[string]string{
		"bus": componentStatus(s.ep.IsConnected()),
	}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			components["database"] = "error"
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			components["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		components["mqtt"] = componentStatus(s.mqtt.IsConnected())
	}
	if s.influx != nil {
		components["influxdb"] = componentStatus(s.influx.IsConnected())
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

func componentStatus(connected bool) string {
	if connected {
		return "ok"
	}
	return "disconnected"
}
