// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package decoding

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/mensura/mensura/internal/logging"
	"github.com/mensura/mensura/internal/models"
)

// luftdatenPayload is the POST body of a luftdaten.info / sensor.community
// firmware push.
type luftdatenPayload struct {
	SensorDataValues []struct {
		ValueType string      `json:"value_type"`
		Value     interface{} `json:"value"`
	} `json:"sensordatavalues"`
}

// decodeLuftdaten maps luftdaten.info readings onto the device's sensors.
// Entries whose value_type resolves to no sensor, or whose value is not
// numeric, are dropped. The payload fails when sensordatavalues is missing
// or when not a single entry resolves.
func decodeLuftdaten(raw []byte, sensors []models.Sensor, now time.Time) ([]models.Measurement, error) {
	var payload luftdatenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, decodeErrorf("invalid luftdaten json: %v", err)
	}
	if payload.SensorDataValues == nil {
		return nil, decodeErrorf("missing sensordatavalues in luftdaten payload")
	}

	measurements := make([]models.Measurement, 0, len(payload.SensorDataValues))
	for _, entry := range payload.SensorDataValues {
		sensor := resolveLuftdatenSensor(sensors, entry.ValueType)
		if sensor == nil {
			logging.Debug().Str("value_type", entry.ValueType).Msg("No sensor matches luftdaten value_type")
			continue
		}

		value, ok := coerceValue(entry.Value)
		if !ok {
			logging.Debug().Str("value_type", entry.ValueType).Msg("Dropping non-numeric luftdaten value")
			continue
		}

		measurements = append(measurements, models.Measurement{
			SensorID:  sensor.ID,
			Value:     value,
			CreatedAt: now,
		})
	}

	if len(measurements) == 0 {
		return nil, decodeErrorf("no applicable sensors found for luftdaten payload")
	}
	return measurements, nil
}
