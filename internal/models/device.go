// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package models

import (
	"strings"
	"time"
)

// Sensor is a single measurable channel of a device. Sensors are lookup
// targets for the decoders and are never mutated by the ingestion pipeline.
type Sensor struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Unit       string `json:"unit"`
	SensorType string `json:"sensorType"`
}

// Device is a registered telemetry source. The ingestion pipeline reads it to
// resolve sensors and to enforce the device's own access-token policy; its
// lifecycle is owned by the storage layer.
type Device struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Exposure string   `json:"exposure,omitempty"`
	Sensors  []Sensor `json:"sensors"`

	// UseAuth gates ingestion on APIKey. Trusted service channels bypass
	// the check.
	UseAuth bool   `json:"useAuth"`
	APIKey  string `json:"-"`

	// CurrentLocation is the location attached to the measurement with the
	// greatest timestamp ever stored for this device, or nil if the device
	// has never reported one.
	CurrentLocation *DeviceLocation `json:"currentLocation,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Sensor returns the device's sensor with the given id, or nil.
// The comparison is case-insensitive because binary frames carry sensor ids
// as raw bytes whose hex encoding loses the original casing.
func (d *Device) Sensor(id string) *Sensor {
	for i := range d.Sensors {
		if strings.EqualFold(d.Sensors[i].ID, id) {
			return &d.Sensors[i]
		}
	}
	return nil
}
