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

// hackairPayload is the POST body of a hackAIR home sensor push.
type hackairPayload struct {
	Reading map[string]interface{} `json:"reading"`
}

// decodeHackair maps hackAIR readings onto the device's sensors. The
// semantics mirror decodeLuftdaten: unresolvable or non-numeric readings are
// dropped, a missing reading object or zero resolved readings fail the
// payload.
func decodeHackair(raw []byte, sensors []models.Sensor, now time.Time) ([]models.Measurement, error) {
	var payload hackairPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, decodeErrorf("invalid hackair json: %v", err)
	}
	if payload.Reading == nil {
		return nil, decodeErrorf("missing reading in hackair payload")
	}

	measurements := make([]models.Measurement, 0, len(payload.Reading))
	for key, rawValue := range payload.Reading {
		sensor := resolveHackairSensor(sensors, key)
		if sensor == nil {
			logging.Debug().Str("reading", key).Msg("No sensor matches hackair reading")
			continue
		}

		value, ok := coerceValue(rawValue)
		if !ok {
			logging.Debug().Str("reading", key).Msg("Dropping non-numeric hackair value")
			continue
		}

		measurements = append(measurements, models.Measurement{
			SensorID:  sensor.ID,
			Value:     value,
			CreatedAt: now,
		})
	}

	if len(measurements) == 0 {
		return nil, decodeErrorf("no applicable sensors found for hackair payload")
	}
	return measurements, nil
}
