// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package decoding

import (
	"testing"

	"github.com/mensura/mensura/internal/models"
)

// luftSensors mirrors the sensor list of a typical German fine-dust station.
func luftSensors() []models.Sensor {
	return []models.Sensor{
		{ID: "s-pm10", Title: "PM10", SensorType: "SDS 011"},
		{ID: "s-pm25", Title: "PM2.5", SensorType: "SDS 011"},
		{ID: "s-temp", Title: "Temperatur", SensorType: "BME280"},
		{ID: "s-hum", Title: "rel. Luftfeuchte", SensorType: "BME280"},
		{ID: "s-press", Title: "Luftdruck", SensorType: "BME280"},
		{ID: "s-temp2", Title: "Temperatur", SensorType: "DHT22"},
		{ID: "s-wifi", Title: "Signalstärke", SensorType: "WiFi"},
	}
}

func TestResolveLuftdatenSensor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		valueType string
		wantID    string
	}{
		{"prefixed temperature picks matching model", "BME280_temperature", "s-temp"},
		{"dht prefixed temperature picks dht sensor", "DHT22_temperature", "s-temp2"},
		{"prefixed humidity", "BME280_humidity", "s-hum"},
		{"prefixed pressure", "BME280_pressure", "s-press"},
		{"particulate p1 maps to pm10", "SDS_P1", "s-pm10"},
		{"particulate p2 maps to pm2.5", "SDS_P2", "s-pm25"},
		{"bare temperature gets implicit dht prefix", "temperature", "s-temp2"},
		{"bare humidity skips non-dht models", "humidity", ""},
		{"bare signal gets implicit wifi prefix", "signal", "s-wifi"},
		{"case insensitive", "bme280_TEMPERATURE", "s-temp"},
		{"unknown phenomenon", "BME280_altitude", ""},
		{"empty value_type", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := resolveLuftdatenSensor(luftSensors(), tt.valueType)
			if tt.wantID == "" {
				if got != nil {
					t.Fatalf("resolveLuftdatenSensor(%q) = %+v, want nil", tt.valueType, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("resolveLuftdatenSensor(%q) = nil, want %s", tt.valueType, tt.wantID)
			}
			if got.ID != tt.wantID {
				t.Errorf("resolveLuftdatenSensor(%q) = %s, want %s", tt.valueType, got.ID, tt.wantID)
			}
		})
	}
}

func TestResolveLuftdatenSensorPrefixIgnoredWithoutSensorType(t *testing.T) {
	t.Parallel()

	// Sensors without a recorded type cannot be filtered by model prefix,
	// so title matching alone decides.
	sensors := []models.Sensor{{ID: "s-temp", Title: "Temperatur"}}

	got := resolveLuftdatenSensor(sensors, "HTU21D_temperature")
	if got == nil || got.ID != "s-temp" {
		t.Fatalf("got %+v, want the untyped Temperatur sensor", got)
	}
}

func TestResolveHackairSensor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		key    string
		wantID string
	}{
		{"pm2.5 reading", "PM2.5_AirPollutantValue", "s-pm25"},
		{"pm10 reading", "PM10_AirPollutantValue", "s-pm10"},
		{"lowercased key", "pm10_airpollutantvalue", "s-pm10"},
		{"unknown key", "O3_AirPollutantValue", ""},
		{"empty key", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := resolveHackairSensor(luftSensors(), tt.key)
			if tt.wantID == "" {
				if got != nil {
					t.Fatalf("resolveHackairSensor(%q) = %+v, want nil", tt.key, got)
				}
				return
			}
			if got == nil || got.ID != tt.wantID {
				t.Fatalf("resolveHackairSensor(%q) = %+v, want %s", tt.key, got, tt.wantID)
			}
		})
	}
}

func TestMatchSensorFirstMatchWins(t *testing.T) {
	t.Parallel()

	sensors := []models.Sensor{
		{ID: "first", Title: "Temperatur", SensorType: "BME280"},
		{ID: "second", Title: "Temperatur", SensorType: "BME280"},
	}

	got := matchSensor(sensors, "bme280", "temperature", luftdatenAliases["temperature"])
	if got == nil || got.ID != "first" {
		t.Fatalf("got %+v, want the first declared sensor", got)
	}
}
