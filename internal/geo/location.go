// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

// Package geo normalizes the heterogeneous location encodings found in
// telemetry payloads into the canonical {lng, lat, height?} shape and
// enforces the coordinate range invariant.
//
// Parsing is deliberately forgiving: devices send locations as coordinate
// arrays, as {lat, lng} objects or as {latitude, longitude} objects, and a
// malformed location must never abort an otherwise valid measurement batch.
// ParseLocation therefore degrades to nil instead of returning an error.
// Range validation is strict and lives in ValidLngLat; the ingestion layer
// calls it where an out-of-range coordinate is fatal for the request.
package geo

import (
	"math"

	"github.com/goccy/go-json"

	"github.com/mensura/mensura/internal/logging"
	"github.com/mensura/mensura/internal/models"
)

// ParseLocation converts a raw decoded location value into the canonical
// shape. Accepted inputs:
//
//   - [lng, lat] or [lng, lat, height] arrays (GeoJSON coordinate order)
//   - {"lng": ..., "lat": ..., "height": ...}
//   - {"longitude": ..., "latitude": ..., "height": ...}
//
// Any other shape, and any non-numeric coordinate, yields nil. The rejected
// value is logged at debug level so misbehaving devices can be diagnosed
// without polluting production logs.
func ParseLocation(raw interface{}) *models.Location {
	if raw == nil {
		return nil
	}

	switch v := raw.(type) {
	case []interface{}:
		return parseCoordArray(v)
	case map[string]interface{}:
		return parseCoordObject(v)
	default:
		logging.Debug().Interface("location", raw).Msg("Unparseable location shape")
		return nil
	}
}

func parseCoordArray(coords []interface{}) *models.Location {
	if len(coords) < 2 || len(coords) > 3 {
		logging.Debug().Interface("location", coords).Msg("Location array needs 2 or 3 elements")
		return nil
	}

	lng, ok := toFloat(coords[0])
	if !ok {
		return nil
	}
	lat, ok := toFloat(coords[1])
	if !ok {
		return nil
	}

	loc := &models.Location{Lng: lng, Lat: lat}
	if len(coords) == 3 {
		if height, ok := toFloat(coords[2]); ok {
			loc.Height = &height
		} else {
			return nil
		}
	}
	return loc
}

func parseCoordObject(obj map[string]interface{}) *models.Location {
	lngRaw, lngOK := obj["lng"]
	latRaw, latOK := obj["lat"]
	if !lngOK || !latOK {
		lngRaw, lngOK = obj["longitude"]
		latRaw, latOK = obj["latitude"]
	}
	if !lngOK || !latOK {
		logging.Debug().Interface("location", obj).Msg("Location object missing coordinate keys")
		return nil
	}

	lng, ok := toFloat(lngRaw)
	if !ok {
		return nil
	}
	lat, ok := toFloat(latRaw)
	if !ok {
		return nil
	}

	loc := &models.Location{Lng: lng, Lat: lat}
	if heightRaw, ok := obj["height"]; ok {
		if height, ok := toFloat(heightRaw); ok {
			loc.Height = &height
		} else {
			return nil
		}
	}
	return loc
}

// toFloat accepts the numeric representations a JSON decode can produce.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ValidLngLat enforces the hard coordinate range invariant:
// -90 <= lat <= 90 and -180 <= lng <= 180.
func ValidLngLat(lng, lat float64) bool {
	if math.IsNaN(lng) || math.IsNaN(lat) {
		return false
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// NormalizeLongitude maps +180 onto -180 so the antimeridian has a single
// representation. Values strictly inside (-180, 180) pass through unchanged.
func NormalizeLongitude(lng float64) float64 {
	if lng == 180 {
		return -180
	}
	return lng
}

// Normalize applies longitude normalization to a location in place and
// returns it for chaining. A nil location stays nil.
func Normalize(loc *models.Location) *models.Location {
	if loc == nil {
		return nil
	}
	loc.Lng = NormalizeLongitude(loc.Lng)
	return loc
}
