// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/mensura/mensura/internal/ingest"
	"github.com/mensura/mensura/internal/models"
	"github.com/mensura/mensura/internal/validation"
)

// PostMeasurements ingests a batch payload for a device.
//
// Method: POST
// Path: /boxes/{deviceID}/data
//
// The Content-Type header selects the decoder; the luftdaten and hackair
// query flags force the corresponding vendor decoder because those devices
// post with a generic JSON content type. The Authorization header is the
// device access token.
//
// Response:
//   - 201: Measurements saved
//   - 401: Device access token not valid
//   - 404: Unknown device
//   - 415: No decoder for the content type
//   - 422: Payload, timestamp or location invalid
func (h *Handler) PostMeasurements(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.Ingest.MaxBodyBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", err)
		return
	}

	query := r.URL.Query()
	saved, err := h.svc.PostNewMeasurements(r.Context(), deviceID, body, ingest.PostOptions{
		ContentType:    r.Header.Get("Content-Type"),
		Luftdaten:      queryFlag(query.Get("luftdaten")),
		Hackair:        queryFlag(query.Get("hackair")),
		Authorization:  r.Header.Get("Authorization"),
		TrustedService: h.isTrustedService(r),
	})
	if err != nil {
		respondIngestError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, &models.APIResponse{
		Status:   "success",
		Data:     models.IngestResult{Message: "Measurements saved in box", Saved: saved},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// PostSingleMeasurement ingests one measurement for one sensor.
//
// Method: POST
// Path: /boxes/{deviceID}/{sensorID}
//
// Body: {"value": number, "createdAt": "RFC3339"?, "location": [lng,lat,height?] | {lat,lng}?}
//
// Response:
//   - 201: Measurement saved
//   - 400: Body is not valid JSON or fails validation
//   - 401/404/422: as for batch ingestion
func (h *Handler) PostSingleMeasurement(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	sensorID := chi.URLParam(r, "sensorID")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.Ingest.MaxBodyBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", err)
		return
	}

	var req ingest.SingleMeasurement
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be a JSON object", err)
		return
	}
	if validationErr := validation.ValidateStruct(&req); validationErr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error(), validationErr)
		return
	}

	err = h.svc.PostSingleMeasurement(r.Context(), deviceID, sensorID, req,
		r.Header.Get("Authorization"), h.isTrustedService(r))
	if err != nil {
		respondIngestError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, &models.APIResponse{
		Status:   "success",
		Data:     models.IngestResult{Message: "Measurement saved in box", Saved: 1},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// isTrustedService reports whether the request arrived over a pre-trusted
// service channel, identified by a shared token in the X-Trusted-Service
// header.
func (h *Handler) isTrustedService(r *http.Request) bool {
	token := r.Header.Get("X-Trusted-Service")
	if token == "" {
		return false
	}
	for _, trusted := range h.config.Ingest.TrustedTokens {
		if token == trusted {
			return true
		}
	}
	return false
}

func queryFlag(value string) bool {
	return value == "true" || value == "1"
}
