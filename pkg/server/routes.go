package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mercator-hq/fieldguard/pkg/telemetry/health"
)

// Handler builds the router with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	if s.tracer != nil && s.tracer.Enabled() {
		r.Use(s.tracer.HTTPMiddleware)
	}
	r.Use(requestLogger(s.logger))
	if s.metrics != nil {
		r.Use(requestMetrics(s.metrics))
	}
	r.Use(middleware.Recoverer)

	// Probes and metrics skip the request timeout and body limit.
	if s.health != nil {
		r.Get("/health", s.health.LivenessHandler())
		r.Get("/ready", s.health.ReadinessHandler())
	}
	r.Get("/version", health.VersionHandler(s.version, s.commit, s.buildTime))
	if s.metrics != nil && s.metricsPath != "" {
		r.Handle(s.metricsPath, s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Handle)
		}
		if s.rateLimit != nil {
			r.Use(s.rateLimit.Handle)
		}
		if s.config.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
		}
		if s.config.MaxBodyBytes > 0 {
			r.Use(maxBodyBytes(s.config.MaxBodyBytes))
		}

		r.Post("/validate", s.handleValidate)
		r.Post("/validate/{fieldId}", s.handleValidateField)
		r.Post("/lint", s.handleLint)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/reload", s.handleReloadRules)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.Get("/{id}", s.handleGetReport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
