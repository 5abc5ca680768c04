// Package api assembles the HTTP surface of the discovery service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/topagents/idp-discovery/internal/api/handlers"
	"github.com/topagents/idp-discovery/internal/api/middleware"
	"github.com/topagents/idp-discovery/internal/discovery"
	"github.com/topagents/idp-discovery/internal/logging"
	"github.com/topagents/idp-discovery/internal/metrics"
)

// Options wires the router's dependencies. Metrics and MetricsRegistry may be nil.
type Options struct {
	Registry        *discovery.Registry
	Store           handlers.Pinger
	Metrics         *metrics.Metrics
	MetricsRegistry *prometheus.Registry
	AdminPassword   string
	CORSOrigins     []string
}

// NewRouter builds the chi router serving /discovery, health, version and metrics.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.Middleware)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", logging.HeaderRequestID},
			ExposedHeaders: []string{logging.HeaderRequestID, "Retry-After"},
		}).Handler)
	}

	r.Route("/discovery", func(r chi.Router) {
		r.Post("/idp", handlers.RegisterIDPHandler(opts.Registry))
		r.Get("/apps", handlers.ListAppsHandler(opts.Registry))

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(opts.AdminPassword))
			r.Get("/idp", handlers.ListIDPsHandler(opts.Registry))
			r.Get("/idp/{id}", handlers.GetIDPHandler(opts.Registry))
			r.Post("/idp/{id}/test", handlers.RetestIDPHandler(opts.Registry))
			r.Get("/idp/{id}/tests", handlers.TestHistoryHandler(opts.Registry))
		})
	})

	r.Get("/healthz", handlers.HealthHandler(opts.Store))
	r.Get("/api/version", handlers.VersionHandler())
	if opts.MetricsRegistry != nil {
		r.Handle("/metrics", metrics.Handler(opts.MetricsRegistry))
	}
	return r
}
