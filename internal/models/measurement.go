// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

// Package models contains the domain types shared across the decoding,
// ingestion and storage layers.
package models

import (
	"math"
	"time"
)

// Location is a geographic position in WGS84 coordinates.
// Longitude comes first to match the GeoJSON coordinate order used on the wire.
type Location struct {
	Lng    float64  `json:"lng"`
	Lat    float64  `json:"lat"`
	Height *float64 `json:"height,omitempty"`
}

// Measurement is the canonical record every decoder produces. Whatever format
// a device speaks on the wire, it is reduced to this shape before validation
// and persistence.
//
// Invariants after decoding:
//   - SensorID is non-empty
//   - Value is finite (non-numeric readings are dropped or rejected upstream)
//   - CreatedAt is set; it defaults to decode time when the payload carries
//     no explicit timestamp
//   - Location is nil when absent or unparseable
type Measurement struct {
	SensorID  string    `json:"sensor_id"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
	Location  *Location `json:"location,omitempty"`
}

// Valid reports whether the measurement satisfies the canonical invariants.
// It does not check coordinate ranges; that is the geo package's concern.
func (m *Measurement) Valid() bool {
	if m.SensorID == "" {
		return false
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return false
	}
	return !m.CreatedAt.IsZero()
}

// DeviceLocation is one entry of a device's time-ordered location history.
type DeviceLocation struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	RecordedAt time.Time `json:"recordedAt"`
	Location
}
