// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mensura/mensura/internal/config"
	"github.com/mensura/mensura/internal/middleware"
)

// NewRouter configures all HTTP routes.
func NewRouter(handler *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID", "X-Trusted-Service"},
	}))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/boxes", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.Server.RateLimitReqs, cfg.Server.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)

		r.Get("/{deviceID}", handler.GetDevice)
		r.Get("/{deviceID}/sensors/{sensorID}/measurements", handler.GetMeasurements)
		r.Post("/{deviceID}/data", handler.PostMeasurements)
		// Must come after /data: chi matches literal segments before
		// the sensorID wildcard.
		r.Post("/{deviceID}/{sensorID}", handler.PostSingleMeasurement)
	})

	return r
}
