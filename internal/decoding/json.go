// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package decoding

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mensura/mensura/internal/geo"
	"github.com/mensura/mensura/internal/logging"
	"github.com/mensura/mensura/internal/models"
)

// decodeJSON handles the two JSON body shapes:
//
// Array form, one object per reading:
//
//	[{"sensor": "5c91", "value": 3.2, "createdAt": "...", "location": [lng,lat]}]
//
// Object form, keyed by sensor id; the value is either a bare scalar or a
// [value, createdAt?, location?] tuple:
//
//	{"5c91": 3.2, "5c92": [17.1, "2026-08-30T10:00:00Z", [7.6, 51.9]]}
//
// Readings with a non-numeric value are dropped, never fatal. An explicit
// createdAt that does not parse fails the whole payload.
func decodeJSON(raw []byte, _ []models.Sensor, now time.Time) ([]models.Measurement, error) {
	var body interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, decodeErrorf("invalid json: %v", err)
	}

	switch v := body.(type) {
	case []interface{}:
		return decodeJSONArray(v, now)
	case map[string]interface{}:
		return decodeJSONObject(v, now)
	default:
		return nil, decodeErrorf("json body must be an array of measurements or an object keyed by sensor id")
	}
}

func decodeJSONArray(records []interface{}, now time.Time) ([]models.Measurement, error) {
	measurements := make([]models.Measurement, 0, len(records))
	for _, rec := range records {
		obj, ok := rec.(map[string]interface{})
		if !ok {
			return nil, decodeErrorf("measurement entries must be objects")
		}

		sensorID, _ := obj["sensor_id"].(string)
		if sensorID == "" {
			sensorID, _ = obj["sensor"].(string)
		}
		if sensorID == "" {
			return nil, decodeErrorf("missing sensor id in measurement entry")
		}

		value, ok := coerceValue(obj["value"])
		if !ok {
			logging.Debug().Str("sensor", sensorID).Msg("Dropping measurement with non-numeric value")
			continue
		}

		m := models.Measurement{SensorID: sensorID, Value: value, CreatedAt: now}
		if rawTime, ok := obj["createdAt"]; ok {
			ts, ok := rawTime.(string)
			if !ok {
				return nil, decodeErrorf("createdAt must be a string timestamp")
			}
			parsed, err := parseTime(ts)
			if err != nil {
				return nil, err
			}
			m.CreatedAt = parsed
		}
		if rawLoc, ok := obj["location"]; ok {
			m.Location = geo.ParseLocation(rawLoc)
		}

		measurements = append(measurements, m)
	}
	return measurements, nil
}

func decodeJSONObject(body map[string]interface{}, now time.Time) ([]models.Measurement, error) {
	measurements := make([]models.Measurement, 0, len(body))
	for sensorID, entry := range body {
		if sensorID == "" {
			return nil, decodeErrorf("empty sensor id key")
		}

		m := models.Measurement{SensorID: sensorID, CreatedAt: now}

		switch v := entry.(type) {
		case []interface{}:
			// Tuple order is fixed: [value, createdAt?, location?].
			if len(v) == 0 || len(v) > 3 {
				return nil, decodeErrorf("measurement tuple for sensor %s needs 1 to 3 elements", sensorID)
			}
			value, ok := coerceValue(v[0])
			if !ok {
				logging.Debug().Str("sensor", sensorID).Msg("Dropping measurement with non-numeric value")
				continue
			}
			m.Value = value
			if len(v) >= 2 {
				ts, ok := v[1].(string)
				if !ok {
					return nil, decodeErrorf("createdAt must be a string timestamp")
				}
				parsed, err := parseTime(ts)
				if err != nil {
					return nil, err
				}
				m.CreatedAt = parsed
			}
			if len(v) == 3 {
				m.Location = geo.ParseLocation(v[2])
			}
		default:
			value, ok := coerceValue(entry)
			if !ok {
				logging.Debug().Str("sensor", sensorID).Msg("Dropping measurement with non-numeric value")
				continue
			}
			m.Value = value
		}

		measurements = append(measurements, m)
	}
	return measurements, nil
}

// coerceValue converts a decoded JSON value to a finite float64. Devices
// routinely send numbers as strings, so numeric strings are accepted.
func coerceValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
