// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package decoding

import (
	"testing"

	"github.com/mensura/mensura/internal/models"
)

func TestDecodeLuftdaten(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"software_version": "NRZ-2020-129",
		"sensordatavalues": [
			{"value_type": "SDS_P1", "value": "12.4"},
			{"value_type": "SDS_P2", "value": "5.8"},
			{"value_type": "BME280_temperature", "value": "21.30"},
			{"value_type": "samples", "value": "812345"},
			{"value_type": "BME280_altitude", "value": "60.5"}
		]
	}`)

	measurements, err := decodeLuftdaten(payload, luftSensors(), testNow)
	if err != nil {
		t.Fatalf("decodeLuftdaten: %v", err)
	}
	if len(measurements) != 3 {
		t.Fatalf("got %d measurements, want 3 (unresolvable entries dropped)", len(measurements))
	}

	byID := make(map[string]float64, len(measurements))
	for _, m := range measurements {
		byID[m.SensorID] = m.Value
		if !m.CreatedAt.Equal(testNow) {
			t.Errorf("CreatedAt = %v, want decode time", m.CreatedAt)
		}
	}

	if byID["s-pm10"] != 12.4 {
		t.Errorf("pm10 = %v, want 12.4", byID["s-pm10"])
	}
	if byID["s-pm25"] != 5.8 {
		t.Errorf("pm2.5 = %v, want 5.8", byID["s-pm25"])
	}
	if byID["s-temp"] != 21.3 {
		t.Errorf("temperature = %v, want 21.3", byID["s-temp"])
	}
}

func TestDecodeLuftdatenDropsNonNumericValue(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"sensordatavalues": [
		{"value_type": "SDS_P1", "value": "n/a"},
		{"value_type": "SDS_P2", "value": "5.8"}
	]}`)

	measurements, err := decodeLuftdaten(payload, luftSensors(), testNow)
	if err != nil {
		t.Fatalf("decodeLuftdaten: %v", err)
	}
	if len(measurements) != 1 || measurements[0].SensorID != "s-pm25" {
		t.Fatalf("got %+v, want only the pm2.5 reading", measurements)
	}
}

func TestDecodeLuftdatenErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		sensors []models.Sensor
	}{
		{"not json", `<xml/>`, luftSensors()},
		{"missing sensordatavalues", `{"software_version": "x"}`, luftSensors()},
		{"nothing resolves", `{"sensordatavalues": [{"value_type": "SDS_P1", "value": "1"}]}`, nil},
		{"empty sensordatavalues", `{"sensordatavalues": []}`, luftSensors()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := decodeLuftdaten([]byte(tt.payload), tt.sensors, testNow); err == nil {
				t.Fatalf("decodeLuftdaten(%s) succeeded, want error", tt.payload)
			}
		})
	}
}
