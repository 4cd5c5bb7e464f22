// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package database

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/mensura/mensura/internal/logging"
	"github.com/mensura/mensura/internal/models"
)

// seedDevice is the on-disk fixture shape. APIKey is accepted in seed files
// even though Device never serializes it.
type seedDevice struct {
	models.Device
	APIKey string `json:"apiKey"`
}

// SeedDevices registers devices from a JSON fixture file, for standalone
// deployments that have no external device registry. Devices that already
// exist are left untouched.
//
// File shape: a JSON array of devices with their sensors:
//
//	[{"id": "...", "name": "...", "apiKey": "...", "useAuth": true,
//	  "sensors": [{"id": "...", "title": "Temperatur", "unit": "°C",
//	               "sensorType": "BME280"}]}]
func (db *DB) SeedDevices(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seeds []seedDevice
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	created := 0
	for i := range seeds {
		device := seeds[i].Device
		device.APIKey = seeds[i].APIKey

		if device.ID != "" {
			if _, err := db.GetDevice(ctx, device.ID); err == nil {
				continue
			}
		}
		if err := db.CreateDevice(ctx, &device); err != nil {
			return fmt.Errorf("failed to seed device %q: %w", device.Name, err)
		}
		created++
	}

	logging.Info().Int("created", created).Int("total", len(seeds)).Str("path", path).Msg("Device seed applied")
	return nil
}
