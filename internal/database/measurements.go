// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mensura/mensura/internal/models"
)

// SaveMeasurements persists a validated batch in a single transaction and
// maintains the device's location history:
//
//   - a measurement with an explicit location appends that location to the
//     history (keyed by the measurement's own timestamp) and advances the
//     device's current-location pointer only if the timestamp is strictly
//     later than the pointer's
//   - a measurement without a location is assigned the nearest preceding
//     location from the history as it exists at insertion time, or none
//     when its timestamp precedes every known location
//
// Location inference happens exactly once, here; later inserts never rewrite
// it. The caller passes measurements oldest first so that inference inside a
// batch sees locations the same batch reported earlier.
func (db *DB) SaveMeasurements(ctx context.Context, device *models.Device, measurements []models.Measurement) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range measurements {
		m := &measurements[i]

		var locationID sql.NullInt64
		if m.Location != nil {
			id, err := db.recordLocation(ctx, tx, device.ID, m.CreatedAt, m.Location)
			if err != nil {
				return err
			}
			locationID = sql.NullInt64{Int64: id, Valid: true}
		} else {
			id, err := db.inferLocation(ctx, tx, device.ID, m.CreatedAt)
			if err != nil {
				return err
			}
			locationID = id
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO measurements (id, device_id, sensor_id, value, created_at, location_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), device.ID, m.SensorID, m.Value, toUnixNano(m.CreatedAt), locationID)
		if err != nil {
			return fmt.Errorf("failed to insert measurement: %w", err)
		}
	}

	return tx.Commit()
}

// recordLocation appends an explicit location to the device's history and
// advances the current-location pointer under the strictly-greater-timestamp
// rule. An identical (timestamp, coordinates, height) entry is reused rather
// than duplicated; devices resend their fixed position with every batch.
func (db *DB) recordLocation(ctx context.Context, tx *sql.Tx, deviceID string, recordedAt time.Time, loc *models.Location) (int64, error) {
	nanos := toUnixNano(recordedAt)

	var id int64
	// IS instead of = so a NULL height compares equal to NULL.
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM device_locations
		 WHERE device_id = ? AND recorded_at = ? AND lng = ? AND lat = ? AND height IS ?`,
		deviceID, nanos, loc.Lng, loc.Lat, heightValue(loc)).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO device_locations (device_id, recorded_at, lng, lat, height)
			 VALUES (?, ?, ?, ?, ?)`,
			deviceID, nanos, loc.Lng, loc.Lat, heightValue(loc))
		if err != nil {
			return 0, fmt.Errorf("failed to insert location: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read location id: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("failed to look up location: %w", err)
	}

	// Advance the current-location pointer only for strictly newer
	// timestamps; out-of-order inserts must never overwrite a more recent
	// current location.
	_, err = tx.ExecContext(ctx,
		`UPDATE devices SET current_location_id = ?
		 WHERE id = ?
		   AND (current_location_id IS NULL
		        OR (SELECT recorded_at FROM device_locations WHERE id = devices.current_location_id) < ?)`,
		id, deviceID, nanos)
	if err != nil {
		return 0, fmt.Errorf("failed to advance current location: %w", err)
	}

	return id, nil
}

// inferLocation resolves the nearest preceding location for a timestamped
// measurement that carries none. Returns a NULL id when the timestamp
// precedes every location the device has ever had; a future-looking guess is
// never made.
func (db *DB) inferLocation(ctx context.Context, tx *sql.Tx, deviceID string, createdAt time.Time) (sql.NullInt64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM device_locations
		 WHERE device_id = ? AND recorded_at <= ?
		 ORDER BY recorded_at DESC, id DESC LIMIT 1`,
		deviceID, toUnixNano(createdAt)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.NullInt64{}, nil
	}
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("failed to infer location: %w", err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

// StoredMeasurement is a measurement as returned by queries, including its
// assigned location.
type StoredMeasurement struct {
	ID        string           `json:"id"`
	SensorID  string           `json:"sensor_id"`
	Value     float64          `json:"value"`
	CreatedAt time.Time        `json:"createdAt"`
	Location  *models.Location `json:"location,omitempty"`
}

// GetMeasurements returns the most recent measurements of a sensor, newest
// first, capped at limit.
func (db *DB) GetMeasurements(ctx context.Context, deviceID, sensorID string, limit int) ([]StoredMeasurement, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.id, m.sensor_id, m.value, m.created_at, l.lng, l.lat, l.height
		 FROM measurements m
		 LEFT JOIN device_locations l ON l.id = m.location_id
		 WHERE m.device_id = ? AND m.sensor_id = ?
		 ORDER BY m.created_at DESC LIMIT ?`,
		deviceID, sensorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var result []StoredMeasurement
	for rows.Next() {
		var m StoredMeasurement
		var createdAt int64
		var lng, lat, height sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.SensorID, &m.Value, &createdAt, &lng, &lat, &height); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		m.CreatedAt = fromUnixNano(createdAt)
		if lng.Valid && lat.Valid {
			m.Location = &models.Location{Lng: lng.Float64, Lat: lat.Float64}
			if height.Valid {
				m.Location.Height = &height.Float64
			}
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func heightValue(loc *models.Location) interface{} {
	if loc.Height == nil {
		return nil
	}
	return *loc.Height
}
