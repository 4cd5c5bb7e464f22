// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mensura/mensura/internal/ingest"
	"github.com/mensura/mensura/internal/models"
)

var baseTime = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestDevice(t *testing.T, db *DB) *models.Device {
	t.Helper()

	device := &models.Device{
		ID:   "dev-1",
		Name: "Balcony Station",
		Sensors: []models.Sensor{
			{ID: "5c91", Title: "Temperatur", Unit: "°C", SensorType: "BME280"},
			{ID: "5c92", Title: "rel. Luftfeuchte", Unit: "%", SensorType: "BME280"},
		},
	}
	if err := db.CreateDevice(context.Background(), device); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	return device
}

func saveOne(t *testing.T, db *DB, device *models.Device, m models.Measurement) {
	t.Helper()

	if err := db.SaveMeasurements(context.Background(), device, []models.Measurement{m}); err != nil {
		t.Fatalf("SaveMeasurements: %v", err)
	}
}

func currentLocation(t *testing.T, db *DB, deviceID string) *models.DeviceLocation {
	t.Helper()

	device, err := db.GetDevice(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	return device.CurrentLocation
}

func TestCreateAndGetDevice(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	want := createTestDevice(t, db)

	got, err := db.GetDevice(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}

	if got.Name != want.Name {
		t.Errorf("Name = %q, want %q", got.Name, want.Name)
	}
	if len(got.Sensors) != 2 {
		t.Fatalf("got %d sensors, want 2", len(got.Sensors))
	}
	// Sensor order is significant for the vendor-format resolvers.
	if got.Sensors[0].ID != "5c91" || got.Sensors[1].ID != "5c92" {
		t.Errorf("sensor order = %s, %s", got.Sensors[0].ID, got.Sensors[1].ID)
	}
	if got.Sensors[0].Unit != "°C" || got.Sensors[0].SensorType != "BME280" {
		t.Errorf("first sensor = %+v", got.Sensors[0])
	}
	if got.CurrentLocation != nil {
		t.Error("fresh device should have no current location")
	}
}

func TestGetDeviceNotFound(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	_, err := db.GetDevice(context.Background(), "missing")
	if !errors.Is(err, ingest.ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestCreateDeviceGeneratesIDs(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	device := &models.Device{
		Name:    "Anonymous Station",
		Sensors: []models.Sensor{{Title: "Temperatur"}},
	}
	if err := db.CreateDevice(context.Background(), device); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if device.ID == "" || device.Sensors[0].ID == "" {
		t.Errorf("ids not generated: device %q sensor %q", device.ID, device.Sensors[0].ID)
	}
}

func TestCurrentLocationAdvancesOnNewerTimestamp(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	device := createTestDevice(t, db)

	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 1, CreatedAt: baseTime.Add(-2 * time.Minute),
		Location: &models.Location{Lng: 7.1, Lat: 51.1},
	})
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 2, CreatedAt: baseTime,
		Location: &models.Location{Lng: 7.2, Lat: 51.2},
	})

	loc := currentLocation(t, db, device.ID)
	if loc == nil {
		t.Fatal("current location not set")
	}
	if loc.Lng != 7.2 || loc.Lat != 51.2 {
		t.Errorf("current location = (%v, %v), want the newer (7.2, 51.2)", loc.Lng, loc.Lat)
	}
	if !loc.RecordedAt.Equal(baseTime) {
		t.Errorf("RecordedAt = %v, want %v", loc.RecordedAt, baseTime)
	}
}

func TestCurrentLocationIgnoresOutOfOrderInsert(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	device := createTestDevice(t, db)

	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 1, CreatedAt: baseTime,
		Location: &models.Location{Lng: 7.2, Lat: 51.2},
	})
	// A backfilled older measurement must not regress the pointer.
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 2, CreatedAt: baseTime.Add(-1 * time.Minute),
		Location: &models.Location{Lng: 7.9, Lat: 51.9},
	})

	loc := currentLocation(t, db, device.ID)
	if loc == nil || loc.Lng != 7.2 {
		t.Fatalf("current location = %+v, want the original (7.2, 51.2)", loc)
	}
}

func TestCurrentLocationEqualTimestampDoesNotAdvance(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	device := createTestDevice(t, db)

	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 1, CreatedAt: baseTime,
		Location: &models.Location{Lng: 7.2, Lat: 51.2},
	})
	// Strictly-greater rule: a second location at the same instant loses.
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c92", Value: 2, CreatedAt: baseTime,
		Location: &models.Location{Lng: 7.9, Lat: 51.9},
	})

	loc := currentLocation(t, db, device.ID)
	if loc == nil || loc.Lng != 7.2 {
		t.Fatalf("current location = %+v, want the first at (7.2, 51.2)", loc)
	}
}

func TestLocationInference(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	device := createTestDevice(t, db)

	// Location history: L1 at -10min, L2 at now.
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 1, CreatedAt: baseTime.Add(-10 * time.Minute),
		Location: &models.Location{Lng: 7.1, Lat: 51.1},
	})
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 2, CreatedAt: baseTime,
		Location: &models.Location{Lng: 7.2, Lat: 51.2},
	})

	// A locationless measurement between the two inherits the earlier one.
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c92", Value: 3, CreatedAt: baseTime.Add(-5 * time.Minute),
	})
	// A locationless measurement after both inherits the later one.
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c92", Value: 4, CreatedAt: baseTime.Add(5 * time.Minute),
	})
	// A measurement older than all history gets none.
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c92", Value: 5, CreatedAt: baseTime.Add(-1 * time.Hour),
	})

	stored, err := db.GetMeasurements(context.Background(), device.ID, "5c92", 10)
	if err != nil {
		t.Fatalf("GetMeasurements: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("got %d measurements, want 3", len(stored))
	}

	// Newest first: value 4, then 3, then 5.
	if stored[0].Value != 4 || stored[0].Location == nil || stored[0].Location.Lng != 7.2 {
		t.Errorf("newest = %+v, want inherited (7.2, 51.2)", stored[0])
	}
	if stored[1].Value != 3 || stored[1].Location == nil || stored[1].Location.Lng != 7.1 {
		t.Errorf("middle = %+v, want inherited (7.1, 51.1)", stored[1])
	}
	if stored[2].Value != 5 || stored[2].Location != nil {
		t.Errorf("oldest = %+v, want no location", stored[2])
	}
}

func TestLocationInferenceIsNotRetroactive(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	device := createTestDevice(t, db)

	// Stored before any location history exists: no location, forever.
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 1, CreatedAt: baseTime,
	})
	// A location that would have matched arrives later.
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 2, CreatedAt: baseTime.Add(-1 * time.Minute),
		Location: &models.Location{Lng: 7.1, Lat: 51.1},
	})

	stored, err := db.GetMeasurements(context.Background(), device.ID, "5c91", 10)
	if err != nil {
		t.Fatalf("GetMeasurements: %v", err)
	}
	for _, m := range stored {
		if m.Value == 1 && m.Location != nil {
			t.Errorf("earlier measurement gained a location retroactively: %+v", m)
		}
	}
}

func TestIntraBatchInference(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	device := createTestDevice(t, db)

	// One batch, sorted oldest first as the ingestion layer guarantees:
	// the second measurement inherits the location the first one reported.
	batch := []models.Measurement{
		{SensorID: "5c91", Value: 1, CreatedAt: baseTime,
			Location: &models.Location{Lng: 7.1, Lat: 51.1}},
		{SensorID: "5c92", Value: 2, CreatedAt: baseTime.Add(time.Minute)},
	}
	if err := db.SaveMeasurements(context.Background(), device, batch); err != nil {
		t.Fatalf("SaveMeasurements: %v", err)
	}

	stored, err := db.GetMeasurements(context.Background(), device.ID, "5c92", 1)
	if err != nil {
		t.Fatalf("GetMeasurements: %v", err)
	}
	if len(stored) != 1 || stored[0].Location == nil || stored[0].Location.Lng != 7.1 {
		t.Fatalf("got %+v, want the location from the same batch", stored)
	}
}

func TestRecordLocationDeduplicates(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	device := createTestDevice(t, db)

	// Fixed stations resend the identical position with every measurement.
	for i := 0; i < 3; i++ {
		saveOne(t, db, device, models.Measurement{
			SensorID: "5c91", Value: float64(i), CreatedAt: baseTime,
			Location: &models.Location{Lng: 7.1, Lat: 51.1},
		})
	}

	var count int
	err := db.conn.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM device_locations WHERE device_id = ?`, device.ID).Scan(&count)
	if err != nil {
		t.Fatalf("count locations: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d location rows, want 1", count)
	}
}

func TestRecordLocationHeightChangeIsNewRow(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	device := createTestDevice(t, db)

	height := 60.0
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 1, CreatedAt: baseTime,
		Location: &models.Location{Lng: 7.1, Lat: 51.1},
	})
	saveOne(t, db, device, models.Measurement{
		SensorID: "5c91", Value: 2, CreatedAt: baseTime,
		Location: &models.Location{Lng: 7.1, Lat: 51.1, Height: &height},
	})

	var count int
	err := db.conn.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM device_locations WHERE device_id = ?`, device.ID).Scan(&count)
	if err != nil {
		t.Fatalf("count locations: %v", err)
	}
	if count != 2 {
		t.Fatalf("got %d location rows, want 2 for differing heights", count)
	}

	stored, err := db.GetMeasurements(context.Background(), device.ID, "5c91", 10)
	if err != nil {
		t.Fatalf("GetMeasurements: %v", err)
	}
	for _, m := range stored {
		if m.Value == 2 {
			if m.Location == nil || m.Location.Height == nil || *m.Location.Height != 60 {
				t.Errorf("measurement = %+v, want its own height 60", m)
			}
		}
	}
}

func TestGetMeasurementsOrderAndLimit(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	device := createTestDevice(t, db)

	for i := 0; i < 5; i++ {
		saveOne(t, db, device, models.Measurement{
			SensorID: "5c91", Value: float64(i), CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		})
	}

	stored, err := db.GetMeasurements(context.Background(), device.ID, "5c91", 3)
	if err != nil {
		t.Fatalf("GetMeasurements: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("got %d measurements, want 3", len(stored))
	}
	for i := 0; i < len(stored)-1; i++ {
		if stored[i].CreatedAt.Before(stored[i+1].CreatedAt) {
			t.Errorf("measurements not newest first: %v before %v", stored[i].CreatedAt, stored[i+1].CreatedAt)
		}
	}
	if stored[0].Value != 4 {
		t.Errorf("newest value = %v, want 4", stored[0].Value)
	}
}

func TestSeedDevices(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	fixture := `[{
		"id": "seeded-1",
		"name": "Seeded Station",
		"apiKey": "seed-key",
		"useAuth": true,
		"sensors": [
			{"id": "s1", "title": "Temperatur", "unit": "°C", "sensorType": "BME280"}
		]
	}]`
	path := filepath.Join(t.TempDir(), "devices.json")
	if err := os.WriteFile(path, []byte(fixture), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := db.SeedDevices(context.Background(), path); err != nil {
		t.Fatalf("SeedDevices: %v", err)
	}

	device, err := db.GetDevice(context.Background(), "seeded-1")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if !device.UseAuth || device.APIKey != "seed-key" {
		t.Errorf("auth fields = useAuth %v apiKey %q", device.UseAuth, device.APIKey)
	}
	if len(device.Sensors) != 1 || device.Sensors[0].Title != "Temperatur" {
		t.Errorf("sensors = %+v", device.Sensors)
	}

	// Seeding again must not duplicate or overwrite.
	if err := db.SeedDevices(context.Background(), path); err != nil {
		t.Fatalf("SeedDevices second run: %v", err)
	}
}
