// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package decoding

import (
	"strings"

	"github.com/mensura/mensura/internal/models"
)

// Third-party devices never agree on sensor naming conventions, so vendor
// readings are mapped to local sensors by a best-effort fuzzy matcher: a
// static table maps each normalized phenomenon key to the title substrings
// it is known under. Resolution returning nil is a soft "skip this reading",
// never an error.

// luftdatenAliases maps luftdaten.info phenomena (the part of value_type
// after the sensor-model prefix, lowercased) to matchable title fragments.
var luftdatenAliases = map[string][]string{
	"p0":          {"pm0.1", "pm01"},
	"p1":          {"pm10", "p10", "p1"},
	"p2":          {"pm2.5", "pm25", "p2.5", "p2"},
	"p4":          {"pm4", "pm4.0"},
	"temperature": {"temperatur"},
	"humidity":    {"rel. luftfeuchte", "luftfeuchtigkeit", "luftfeuchte"},
	"pressure":    {"luftdruck", "druck"},
	"signal":      {"stärke", "signal"},
	"noise_laeq":  {"schallpegel", "lautstärke", "noise"},
}

// hackairAliases maps full hackAIR reading keys (lowercased) to matchable
// title fragments. hackAIR keys repeat the same suffix for every pollutant,
// so unlike luftdaten the whole key is the table key and no sensor-model
// prefix is available.
var hackairAliases = map[string][]string{
	"pm2.5_airpollutantvalue": {"pm2.5", "pm25", "p2.5", "p2"},
	"pm10_airpollutantvalue":  {"pm10", "p10", "p1"},
}

// implicitPrefixes supplies the sensor-model prefix for bare luftdaten keys
// that carry none.
var implicitPrefixes = map[string]string{
	"temperature": "dht",
	"humidity":    "dht",
	"signal":      "wifi",
}

// resolveLuftdatenSensor maps a luftdaten value_type like "BME280_temperature"
// to one of the device's sensors. The key is split at the first underscore
// into (sensor-model prefix, phenomenon); bare temperature/humidity/signal
// keys get an implicit prefix. Returns nil when nothing matches.
func resolveLuftdatenSensor(sensors []models.Sensor, valueType string) *models.Sensor {
	key := strings.ToLower(strings.TrimSpace(valueType))

	prefix := ""
	phenomenon := key
	if idx := strings.Index(key, "_"); idx >= 0 {
		prefix = key[:idx]
		phenomenon = key[idx+1:]
	} else if implicit, ok := implicitPrefixes[key]; ok {
		prefix = implicit
	}

	aliases, ok := luftdatenAliases[phenomenon]
	if !ok {
		return nil
	}
	return matchSensor(sensors, prefix, phenomenon, aliases)
}

// resolveHackairSensor maps a hackAIR reading key like
// "PM2.5_AirPollutantValue" to one of the device's sensors.
func resolveHackairSensor(sensors []models.Sensor, key string) *models.Sensor {
	phenomenon := strings.ToLower(strings.TrimSpace(key))
	aliases, ok := hackairAliases[phenomenon]
	if !ok {
		return nil
	}
	// hackAIR keys carry no usable sensor-model prefix.
	return matchSensor(sensors, "", phenomenon, aliases)
}

// matchSensor scans the device's sensors in their existing order and returns
// the first one whose type and title fit. A sensor matches when:
//
//   - its sensorType, when set and a prefix was derived, starts with the
//     prefix (case-insensitive), and
//   - its lowercased title equals the phenomenon key, equals one alias, or
//     contains one alias as a substring.
func matchSensor(sensors []models.Sensor, prefix, phenomenon string, aliases []string) *models.Sensor {
	for i := range sensors {
		s := &sensors[i]
		if prefix != "" && s.SensorType != "" &&
			!strings.HasPrefix(strings.ToLower(s.SensorType), prefix) {
			continue
		}

		title := strings.ToLower(s.Title)
		if title == phenomenon {
			return s
		}
		for _, alias := range aliases {
			if title == alias || strings.Contains(title, alias) {
				return s
			}
		}
	}
	return nil
}
