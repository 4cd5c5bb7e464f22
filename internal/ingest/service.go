// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

// Package ingest orchestrates measurement ingestion: it authenticates the
// device, dispatches the payload to the right decoder, validates every
// decoded record and hands the batch to storage in a single call.
//
// Validation fully precedes the write. A request either persists the whole
// validated batch or nothing; there are no partial-write semantics.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mensura/mensura/internal/decoding"
	"github.com/mensura/mensura/internal/geo"
	"github.com/mensura/mensura/internal/logging"
	"github.com/mensura/mensura/internal/metrics"
	"github.com/mensura/mensura/internal/models"
)

// Store is the persistence surface the orchestrator consumes. The
// implementation owns device lifecycle and the location reconciliation
// contract; the orchestrator only reads devices and writes validated
// batches.
type Store interface {
	// GetDevice loads a device with its sensors, or ErrDeviceNotFound.
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)

	// SaveMeasurements persists a validated batch for the device,
	// maintaining the device's location history and current-location
	// pointer per measurement timestamp.
	SaveMeasurements(ctx context.Context, device *models.Device, measurements []models.Measurement) error
}

// ErrDeviceNotFound is returned by Store implementations for unknown ids.
var ErrDeviceNotFound = errors.New("device not found")

// PostOptions carries the request-boundary context of a batch ingestion.
type PostOptions struct {
	ContentType string

	// Luftdaten and Hackair force the corresponding decoder regardless of
	// the content type header; those devices post plain JSON.
	Luftdaten bool
	Hackair   bool

	// Authorization is the raw Authorization header value, compared
	// verbatim against the device's apiKey when the device requires auth.
	Authorization string

	// TrustedService marks a pre-trusted internal channel that bypasses
	// the device's access-token policy.
	TrustedService bool
}

// SingleMeasurement is the decoded body of a single-measurement POST.
type SingleMeasurement struct {
	Value     interface{} `json:"value" validate:"required"`
	CreatedAt string      `json:"createdAt" validate:"omitempty,rfc3339"`
	Location  interface{} `json:"location,omitempty"`
}

// Service is the ingestion orchestrator.
type Service struct {
	store Store

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewService creates an ingestion service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// PostNewMeasurements ingests a batch payload for a device.
//
// Flow: resolve the decoder (flags override the header), fail fast if none
// exists, load the device, enforce its access-token policy, decode, validate
// every record, then forward the batch to storage in one call. Returns the
// number of measurements saved.
func (s *Service) PostNewMeasurements(ctx context.Context, deviceID string, body []byte, opts PostOptions) (int, error) {
	contentType := opts.ContentType
	switch {
	case opts.Luftdaten:
		contentType = decoding.TypeLuftdaten
	case opts.Hackair:
		contentType = decoding.TypeHackair
	}

	normalized := decoding.NormalizeContentType(contentType)
	if !decoding.HasDecoder(normalized) {
		return 0, unsupportedMedia(fmt.Sprintf("No decoder found for content type %q", contentType))
	}

	device, err := s.loadDevice(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	if err := checkAccessToken(device, opts.Authorization, opts.TrustedService); err != nil {
		return 0, err
	}

	now := s.now().UTC()
	measurements, err := decoding.DecodeMeasurements(body, decoding.Options{
		ContentType: normalized,
		Sensors:     device.Sensors,
		Now:         now,
	})
	if err != nil {
		metrics.DecodeFailures.WithLabelValues(normalized).Inc()
		if errors.Is(err, decoding.ErrNoDecoder) {
			return 0, unsupportedMedia(err.Error())
		}
		return 0, unprocessable(err.Error(), err)
	}
	metrics.MeasurementsDecoded.WithLabelValues(normalized).Add(float64(len(measurements)))

	if err := s.validateBatch(device, measurements, now); err != nil {
		return 0, err
	}

	if err := s.save(ctx, device, measurements); err != nil {
		return 0, err
	}
	return len(measurements), nil
}

// PostSingleMeasurement ingests one measurement for a specific sensor of a
// device. Unlike the batch path, a non-numeric value or invalid timestamp
// rejects the request outright; there is no batch to drop it from.
func (s *Service) PostSingleMeasurement(ctx context.Context, deviceID, sensorID string, body SingleMeasurement, authorization string, trustedService bool) error {
	value, ok := numericValue(body.Value)
	if !ok {
		return unprocessable("Invalid value: expected a number", nil)
	}

	device, err := s.loadDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	sensor := device.Sensor(sensorID)
	if sensor == nil {
		return notFound(fmt.Sprintf("Sensor %s not found on device %s", sensorID, deviceID))
	}
	if err := checkAccessToken(device, authorization, trustedService); err != nil {
		return err
	}

	now := s.now().UTC()
	measurement := models.Measurement{SensorID: sensor.ID, Value: value, CreatedAt: now}

	if body.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, body.CreatedAt)
		if err != nil {
			return unprocessable(fmt.Sprintf("Invalid createdAt: %v", err), err)
		}
		measurement.CreatedAt = createdAt.UTC()
	}

	if body.Location != nil {
		measurement.Location = geo.ParseLocation(body.Location)
		if measurement.Location == nil {
			return unprocessable("Invalid location format", nil)
		}
	}

	if err := s.validateBatch(device, []models.Measurement{measurement}, now); err != nil {
		return err
	}

	return s.save(ctx, device, []models.Measurement{measurement})
}

func (s *Service) loadDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, notFound(fmt.Sprintf("Device %s not found", deviceID))
		}
		return nil, err
	}
	return device, nil
}

// checkAccessToken enforces the device's own access-token policy. The header
// is compared verbatim against the stored key; trusted service channels are
// exempt.
func checkAccessToken(device *models.Device, authorization string, trustedService bool) error {
	if !device.UseAuth || trustedService {
		return nil
	}
	if authorization == "" || authorization != device.APIKey {
		return unauthorized("Device access token not valid!")
	}
	return nil
}

// validateBatch enforces the canonical invariants on every record: finite
// value, a sensor id that resolves to a sensor of the target device,
// timestamp not too far in the future, and coordinates in range (longitude
// normalized first). The first violation fails the whole request. Resolved
// sensor ids are rewritten to the device's own spelling.
func (s *Service) validateBatch(device *models.Device, measurements []models.Measurement, now time.Time) error {
	maxCreatedAt := now.Add(decoding.MaxFutureDrift)
	for i := range measurements {
		m := &measurements[i]
		if !m.Valid() {
			return unprocessable("Invalid measurement", nil)
		}
		sensor := device.Sensor(m.SensorID)
		if sensor == nil {
			return unprocessable(fmt.Sprintf("Sensor %s is not part of device %s", m.SensorID, device.ID), nil)
		}
		m.SensorID = sensor.ID
		if m.CreatedAt.After(maxCreatedAt) {
			return unprocessable(fmt.Sprintf("Timestamp %s is too far in the future", m.CreatedAt.Format(time.RFC3339)), nil)
		}
		if m.Location != nil {
			geo.Normalize(m.Location)
			if !geo.ValidLngLat(m.Location.Lng, m.Location.Lat) {
				return unprocessable("Invalid location coordinates", nil)
			}
		}
	}
	return nil
}

// save hands the batch to storage, oldest first so that location inference
// inside a batch sees locations reported earlier in that same batch.
func (s *Service) save(ctx context.Context, device *models.Device, measurements []models.Measurement) error {
	sort.SliceStable(measurements, func(i, j int) bool {
		return measurements[i].CreatedAt.Before(measurements[j].CreatedAt)
	})

	if err := s.store.SaveMeasurements(ctx, device, measurements); err != nil {
		logging.Err(err).Str("device", device.ID).Msg("Failed to save measurements")
		return err
	}

	metrics.MeasurementsSaved.Add(float64(len(measurements)))
	logging.Info().Str("device", device.ID).Int("count", len(measurements)).Msg("Measurements saved")
	return nil
}

// numericValue coerces the JSON value field of a single-measurement request.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}
