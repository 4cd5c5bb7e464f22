// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

// Package metrics provides Prometheus instrumentation for the ingestion
// pipeline and the HTTP layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MeasurementsDecoded counts successfully decoded measurements per
	// payload format.
	MeasurementsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mensura_measurements_decoded_total",
			Help: "Total number of measurements decoded, by payload format",
		},
		[]string{"format"},
	)

	// DecodeFailures counts payloads that failed to decode, per format.
	DecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mensura_decode_failures_total",
			Help: "Total number of payloads that failed to decode, by payload format",
		},
		[]string{"format"},
	)

	// MeasurementsSaved counts measurements handed to storage.
	MeasurementsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mensura_measurements_saved_total",
			Help: "Total number of measurements persisted",
		},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mensura_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mensura_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	activeRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mensura_api_active_requests",
			Help: "Number of API requests currently in flight",
		},
	)
)

// RecordAPIRequest records one finished API request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	apiRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	apiRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(active bool) {
	if active {
		activeRequests.Inc()
	} else {
		activeRequests.Dec()
	}
}
