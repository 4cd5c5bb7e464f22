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

	"github.com/mensura/mensura/internal/ingest"
	"github.com/mensura/mensura/internal/models"
)

// CreateDevice inserts a device and its sensors. Missing device or sensor
// ids are generated. Sensor order is preserved; the vendor-format resolvers
// depend on it.
func (db *DB) CreateDevice(ctx context.Context, device *models.Device) error {
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now().UTC()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO devices (id, name, exposure, api_key, use_auth, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		device.ID, device.Name, device.Exposure, device.APIKey, boolToInt(device.UseAuth),
		toUnixNano(device.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}

	for i := range device.Sensors {
		s := &device.Sensors[i]
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sensors (id, device_id, title, unit, sensor_type, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, device.ID, s.Title, s.Unit, s.SensorType, i)
		if err != nil {
			return fmt.Errorf("failed to insert sensor: %w", err)
		}
	}

	return tx.Commit()
}

// GetDevice loads a device with its sensors in device order and its current
// location, or ingest.ErrDeviceNotFound.
func (db *DB) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	device := &models.Device{ID: deviceID}

	var useAuth int
	var createdAt int64
	var currentLocationID sql.NullInt64
	err := db.conn.QueryRowContext(ctx,
		`SELECT name, exposure, api_key, use_auth, current_location_id, created_at
		 FROM devices WHERE id = ?`, deviceID).
		Scan(&device.Name, &device.Exposure, &device.APIKey, &useAuth, &currentLocationID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ingest.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	device.UseAuth = useAuth != 0
	device.CreatedAt = fromUnixNano(createdAt)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, unit, sensor_type FROM sensors
		 WHERE device_id = ? ORDER BY position`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sensors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.Sensor
		if err := rows.Scan(&s.ID, &s.Title, &s.Unit, &s.SensorType); err != nil {
			return nil, fmt.Errorf("failed to scan sensor: %w", err)
		}
		device.Sensors = append(device.Sensors, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensors: %w", err)
	}

	if currentLocationID.Valid {
		loc, err := db.loadLocation(ctx, currentLocationID.Int64)
		if err != nil {
			return nil, err
		}
		device.CurrentLocation = loc
	}

	return device, nil
}

func (db *DB) loadLocation(ctx context.Context, locationID int64) (*models.DeviceLocation, error) {
	loc := &models.DeviceLocation{ID: locationID}
	var recordedAt int64
	var height sql.NullFloat64
	err := db.conn.QueryRowContext(ctx,
		`SELECT device_id, recorded_at, lng, lat, height FROM device_locations WHERE id = ?`,
		locationID).
		Scan(&loc.DeviceID, &recordedAt, &loc.Lng, &loc.Lat, &height)
	if err != nil {
		return nil, fmt.Errorf("failed to load location: %w", err)
	}
	loc.RecordedAt = fromUnixNano(recordedAt)
	if height.Valid {
		loc.Height = &height.Float64
	}
	return loc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
