// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mensura/mensura/internal/ingest"
	"github.com/mensura/mensura/internal/logging"
	"github.com/mensura/mensura/internal/models"
)

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondIngestError maps the ingestion error taxonomy onto HTTP statuses.
// Anything outside the closed name set is an internal error: logged with the
// cause, surfaced with a generic message.
func respondIngestError(w http.ResponseWriter, err error) {
	if errors.Is(err, ingest.ErrDeviceNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Device not found", nil)
		return
	}

	ingErr, ok := ingest.AsError(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	switch ingErr.Name {
	case ingest.NameUnauthorized:
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", ingErr.Message, nil)
	case ingest.NameNotFound:
		respondError(w, http.StatusNotFound, "NOT_FOUND", ingErr.Message, nil)
	case ingest.NameUnprocessableEntity:
		respondError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", ingErr.Message, nil)
	case ingest.NameUnsupportedMediaType:
		respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", ingErr.Message, nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
	}
}

// sanitizeLogValue replaces control characters so attacker-supplied strings
// cannot forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
