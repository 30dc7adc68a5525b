package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onap/policy-clamp-acm/internal/commissioning"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)

	if s.metricsCfg.Enabled && s.prometheus != nil {
		r.Handle(s.metricsCfg.Path, s.prometheus.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		// Template documents may be larger than ordinary request bodies
		r.Route("/compositions", func(r chi.Router) {
			r.With(s.bodySizeLimit(commissioning.MaxDocumentSize)).Post("/", s.handleCommission)
			r.Get("/", s.handleListDefinitions)

			r.Route("/{compositionID}", func(r chi.Router) {
				r.Get("/", s.handleGetDefinition)
				r.With(s.bodySizeLimit(commissioning.MaxDocumentSize)).Put("/", s.handleUpdateDefinition)
				r.Delete("/", s.handleDecommission)
				r.Get("/elements", s.handleGetElementDefinitions)

				r.Group(func(r chi.Router) {
					r.Use(s.bodySizeLimit(maxRequestBodySize))
					r.Put("/priming", s.handlePriming)

					r.Route("/instances", func(r chi.Router) {
						r.Get("/", s.handleListInstances)
						r.Post("/", s.handleCreateInstance)

						r.Route("/{instanceID}", func(r chi.Router) {
							r.Get("/", s.handleGetInstance)
							r.Put("/", s.handleUpdateInstance)
							r.Delete("/", s.handleDeleteInstance)
							r.Post("/precheck", s.handlePrecheckInstance)
							r.Post("/rollback", s.handleRevertInstance)
							r.Put("/state", s.handleInstanceOrder)
							r.Put("/elements/{elementID}/status", s.handleElementStatus)
						})
					})
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.bodySizeLimit(maxRequestBodySize))
			r.Get("/instances", s.handleListAllInstances)
			r.Post("/instances/commands", s.handleIssueCommand)
		})

		r.Route("/participants", func(r chi.Router) {
			r.Get("/", s.handleListParticipants)
			r.Get("/{participantID}", s.handleGetParticipant)
		})

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// wsPath returns the configured WebSocket path relative to /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
	})
}
