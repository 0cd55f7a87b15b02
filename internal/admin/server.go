package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", s.handleHealth())
	r.Get("/metrics", s.handleMetrics())

	// Operator endpoints — auth required when configured.
	mount := func(r chi.Router) {
		r.Get("/status", s.handleStatus())
		r.Get("/events", s.handleEvents())
	}
	if s.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(s.config.Auth))
			mount(r)
		})
	} else {
		mount(r)
	}

	return r
}

// handleMetrics serves the Prometheus registry, falling back to the
// default gatherer when no registry service was published.
func (s *Server) handleMetrics() http.HandlerFunc {
	h := promhttp.Handler()
	if s.registry != nil {
		h = promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	}
	return h.ServeHTTP
}
