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

	"github.com/mensura/mensura/internal/logging"
	"github.com/mensura/mensura/internal/models"
)

// decodeCSV handles newline-delimited rows of the form
//
//	sensorId,value[,createdAt[,lng,lat[,height]]]
//
// Every field is trimmed before parsing. createdAt defaults to decode time
// when absent. A location is only parsed when both lng and lat fields are
// present; a half-present or non-numeric coordinate pair degrades to no
// location. Rows with a missing sensor id or a non-numeric value are
// dropped; an explicit createdAt that does not parse fails the payload.
func decodeCSV(raw []byte, _ []models.Sensor, now time.Time) ([]models.Measurement, error) {
	lines := strings.Split(string(raw), "\n")
	measurements := make([]models.Measurement, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		if len(fields) < 2 || fields[0] == "" {
			logging.Debug().Str("row", line).Msg("Dropping malformed csv row")
			continue
		}

		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			logging.Debug().Str("sensor", fields[0]).Msg("Dropping csv row with non-numeric value")
			continue
		}

		m := models.Measurement{SensorID: fields[0], Value: value, CreatedAt: now}

		if len(fields) >= 3 && fields[2] != "" {
			parsed, err := parseTime(fields[2])
			if err != nil {
				return nil, err
			}
			m.CreatedAt = parsed
		}

		if len(fields) >= 5 && fields[3] != "" && fields[4] != "" {
			m.Location = parseCSVLocation(fields[3:])
		}

		measurements = append(measurements, m)
	}

	return measurements, nil
}

func parseCSVLocation(fields []string) *models.Location {
	lng, errLng := strconv.ParseFloat(fields[0], 64)
	lat, errLat := strconv.ParseFloat(fields[1], 64)
	if errLng != nil || errLat != nil {
		logging.Debug().Strs("fields", fields).Msg("Dropping unparseable csv location")
		return nil
	}

	loc := &models.Location{Lng: lng, Lat: lat}
	if len(fields) >= 3 && fields[2] != "" {
		if height, err := strconv.ParseFloat(fields[2], 64); err == nil {
			loc.Height = &height
		}
	}
	return loc
}
