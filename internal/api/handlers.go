// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

// Package api provides the HTTP boundary of the ingestion service.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, read and health endpoints
//   - handlers_ingest.go: the two measurement ingestion endpoints
//   - helpers.go: response helpers and error-to-status mapping
//   - router.go: chi route setup and middleware stack
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mensura/mensura/internal/config"
	"github.com/mensura/mensura/internal/database"
	"github.com/mensura/mensura/internal/ingest"
	"github.com/mensura/mensura/internal/models"
)

// Reader is the query surface the read endpoints consume. Satisfied by
// *database.DB.
type Reader interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	GetMeasurements(ctx context.Context, deviceID, sensorID string, limit int) ([]database.StoredMeasurement, error)
	Ping(ctx context.Context) error
}

// Handler contains the dependencies of all API handlers.
type Handler struct {
	svc       *ingest.Service
	db        Reader
	config    *config.Config
	startTime time.Time
}

// NewHandler creates the API handler.
func NewHandler(svc *ingest.Service, db Reader, cfg *config.Config) *Handler {
	return &Handler{
		svc:       svc,
		db:        db,
		config:    cfg,
		startTime: time.Now(),
	}
}

// HealthLive reports process liveness.
//
// Method: GET
// Path: /health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"status": "alive",
			"uptime": time.Since(h.startTime).Round(time.Second).String(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthReady reports readiness; it fails when the database does not answer
// a ping.
//
// Method: GET
// Path: /health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Database not available", err)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     map[string]interface{}{"status": "ready"},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// GetDevice returns a device with its sensors and current location.
//
// Method: GET
// Path: /boxes/{deviceID}
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	start := time.Now()
	device, err := h.db.GetDevice(r.Context(), deviceID)
	if err != nil {
		respondIngestError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   device,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// GetMeasurements returns the most recent measurements of one sensor,
// newest first.
//
// Method: GET
// Path: /boxes/{deviceID}/sensors/{sensorID}/measurements?limit=n
func (h *Handler) GetMeasurements(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	sensorID := chi.URLParam(r, "sensorID")

	limit := 100
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 1 || parsed > 10000 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer in [1, 10000]", err)
			return
		}
		limit = parsed
	}

	start := time.Now()
	measurements, err := h.db.GetMeasurements(r.Context(), deviceID, sensorID, limit)
	if err != nil {
		respondIngestError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   measurements,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
