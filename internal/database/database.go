// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

// Package database persists devices, sensors, measurements and device
// location history in SQLite, and implements the location reconciliation
// contract the ingestion layer depends on:
//
//   - the device's current location is the location of the measurement with
//     the greatest timestamp ever stored, regardless of insertion order
//   - a measurement without an explicit location inherits the nearest
//     preceding location as of its own timestamp, decided once at insertion
//     time
//   - a measurement older than every known location is stored without one
//
// The pure-Go modernc driver is used so the service builds without cgo.
// Access is serialized over a single physical connection; WAL and
// busy_timeout pragmas keep ingest writes fast enough for realtime use.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mensura/mensura/internal/logging"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database in tests.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One physical connection; no concurrent statements at DB layer.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}
	if err := db.tune(ctx); err != nil {
		logging.Warn().Err(err).Msg("SQLite tuning skipped")
	}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	logging.Info().Str("path", path).Msg("Database opened")
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection, for readiness checks.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) tune(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("pragma failed (%s): %w", pragma, err)
		}
	}
	return nil
}

// Timestamps are stored as integer unix nanoseconds so ordering comparisons
// stay exact and cheap.
func (db *DB) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			exposure            TEXT NOT NULL DEFAULT '',
			api_key             TEXT NOT NULL DEFAULT '',
			use_auth            INTEGER NOT NULL DEFAULT 0,
			current_location_id INTEGER,
			created_at          INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sensors (
			id          TEXT PRIMARY KEY,
			device_id   TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			title       TEXT NOT NULL,
			unit        TEXT NOT NULL DEFAULT '',
			sensor_type TEXT NOT NULL DEFAULT '',
			position    INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensors_device ON sensors(device_id, position)`,
		`CREATE TABLE IF NOT EXISTS device_locations (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id   TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			recorded_at INTEGER NOT NULL,
			lng         REAL NOT NULL,
			lat         REAL NOT NULL,
			height      REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_device_locations_device_time
			ON device_locations(device_id, recorded_at)`,
		`CREATE TABLE IF NOT EXISTS measurements (
			id          TEXT PRIMARY KEY,
			device_id   TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			sensor_id   TEXT NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
			value       REAL NOT NULL,
			created_at  INTEGER NOT NULL,
			location_id INTEGER REFERENCES device_locations(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_sensor_time
			ON measurements(sensor_id, created_at)`,
	}

	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
