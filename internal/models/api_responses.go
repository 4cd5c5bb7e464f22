// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints. Status is "success" or "error"; Error is populated only for the
// latter.
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "UNPROCESSABLE_ENTITY",
//	    "message": "Invalid location coordinates"
//	  },
//	  "metadata": {"timestamp": "2026-08-31T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError carries a machine-readable code alongside the human-readable
// message. Codes form a closed set mirroring the ingestion error taxonomy
// (UNAUTHORIZED, NOT_FOUND, UNPROCESSABLE_ENTITY, UNSUPPORTED_MEDIA_TYPE,
// VALIDATION_ERROR, INTERNAL_ERROR).
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// IngestResult reports the outcome of a successful ingestion request.
type IngestResult struct {
	Message string `json:"message"`
	Saved   int    `json:"saved"`
}
