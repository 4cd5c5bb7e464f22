// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package decoding

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"
	"time"

	"github.com/mensura/mensura/internal/logging"
	"github.com/mensura/mensura/internal/models"
)

// Binary frame layout. Records are fixed width and packed back to back:
//
//	offset 0   12-byte sensor id (raw bytes, hex-encoded for lookup)
//	offset 12  float32 LE value
//	offset 16  uint32 LE unix seconds (sbx-bytes-ts only)
const (
	sensorIDBytes = 12
	recordBytes   = 16
	recordBytesTS = 20
)

// decodeBytes handles application/sbx-bytes: 16-byte records without a
// timestamp; every measurement is stamped with decode time.
func decodeBytes(raw []byte, sensors []models.Sensor, now time.Time) ([]models.Measurement, error) {
	return decodeFrames(raw, sensors, now, false)
}

// decodeBytesTS handles application/sbx-bytes-ts: 20-byte records carrying a
// unix-seconds timestamp. A timestamp more than MaxFutureDrift ahead of the
// server clock fails the whole batch.
func decodeBytesTS(raw []byte, sensors []models.Sensor, now time.Time) ([]models.Measurement, error) {
	return decodeFrames(raw, sensors, now, true)
}

func decodeFrames(raw []byte, sensors []models.Sensor, now time.Time, withTimestamp bool) ([]models.Measurement, error) {
	recordSize := recordBytes
	if withTimestamp {
		recordSize = recordBytesTS
	}

	if len(raw)%recordSize != 0 {
		return nil, decodeErrorf("illegal number of bytes: payload length %d is not a multiple of %d", len(raw), recordSize)
	}
	count := len(raw) / recordSize
	if count == 0 {
		return nil, decodeErrorf("no measurements in payload")
	}
	if count > MaxRecords {
		return nil, decodeErrorf("too many measurements: please submit at most %d measurements at once", MaxRecords)
	}

	measurements := make([]models.Measurement, 0, count)
	for offset := 0; offset < len(raw); offset += recordSize {
		m, err := extractMeasurement(raw, offset, sensors, now, withTimestamp)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		measurements = append(measurements, *m)
	}
	return measurements, nil
}

// extractMeasurement decodes a single fixed-width record starting at offset.
// The 12 id bytes are hex-encoded byte by byte (zero-padded, two hex digits
// each) and matched case-insensitively against the device's sensor ids. An
// unknown sensor id or a non-finite value skips the record rather than
// failing; a too-far-future timestamp is an error that fails the caller's
// batch.
func extractMeasurement(raw []byte, offset int, sensors []models.Sensor, now time.Time, withTimestamp bool) (*models.Measurement, error) {
	idHex := hex.EncodeToString(raw[offset : offset+sensorIDBytes])

	var sensorID string
	for i := range sensors {
		if strings.EqualFold(sensors[i].ID, idHex) {
			sensorID = sensors[i].ID
			break
		}
	}
	if sensorID == "" {
		logging.Warn().Str("sensor_id", idHex).Msg("Binary record references unknown sensor, skipping")
		return nil, nil
	}

	value := float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[offset+sensorIDBytes:])))
	if math.IsNaN(value) || math.IsInf(value, 0) {
		logging.Debug().Str("sensor_id", sensorID).Msg("Dropping binary record with non-finite value")
		return nil, nil
	}

	m := &models.Measurement{
		SensorID:  sensorID,
		Value:     value,
		CreatedAt: now,
	}

	if withTimestamp {
		secs := binary.LittleEndian.Uint32(raw[offset+recordBytes:])
		ts := time.Unix(int64(secs), 0).UTC()
		if ts.After(now.Add(MaxFutureDrift)) {
			return nil, decodeErrorf("timestamp %s is too far in the future", ts.Format(time.RFC3339))
		}
		m.CreatedAt = ts
	}

	return m, nil
}
