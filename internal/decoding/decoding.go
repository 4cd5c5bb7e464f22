// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

// Package decoding converts raw telemetry payloads into canonical
// measurements.
//
// A decoder is a pure function: payload bytes plus the target device's
// sensor list in, a slice of models.Measurement out. No decoder performs
// I/O. Dispatch happens on a normalized content type:
//
//	application/json         array of records, or object keyed by sensor id
//	text/csv                 sensorId,value[,createdAt[,lng,lat[,height]]]
//	luftdaten                {"sensordatavalues": [{value_type, value}, ...]}
//	hackair                  {"reading": {key: value, ...}}
//	application/sbx-bytes    16-byte records: 12-byte id + float32 LE
//	application/sbx-bytes-ts 20-byte records: + uint32 LE unix seconds
//
// The luftdaten and hackair ids are not real MIME types; the ingestion layer
// forces them via request flags because those devices post with a generic
// JSON content type.
package decoding

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mensura/mensura/internal/models"
)

// Content type identifiers after normalization.
const (
	TypeJSON      = "application/json"
	TypeCSV       = "text/csv"
	TypeLuftdaten = "luftdaten"
	TypeHackair   = "hackair"
	TypeBytes     = "application/sbx-bytes"
	TypeBytesTS   = "application/sbx-bytes-ts"
)

const (
	// MaxRecords caps the number of records a single binary payload may
	// carry. This bounds worst-case CPU and memory per request; it is a
	// backpressure policy, not a tuning knob.
	MaxRecords = 2500

	// MaxFutureDrift is how far an explicit measurement timestamp may lie
	// ahead of the server clock before it is rejected.
	MaxFutureDrift = 5 * time.Minute
)

// ErrNoDecoder is returned when a payload's content type has no decoder.
var ErrNoDecoder = errors.New("no decoder found for content type")

// Error wraps a decoder-level failure. The ingestion layer maps it to an
// unprocessable-entity response, preserving the original message.
type Error struct {
	cause error
}

func (e *Error) Error() string { return e.cause.Error() }

func (e *Error) Unwrap() error { return e.cause }

func decodeErrorf(format string, args ...interface{}) error {
	return &Error{cause: fmt.Errorf(format, args...)}
}

// Options configures a decode run.
type Options struct {
	// ContentType selects the decoder. It is normalized before dispatch.
	ContentType string

	// Sensors is the target device's sensor list, in device order. The
	// vendor decoders resolve readings against it and the binary decoders
	// match frame ids against it.
	Sensors []models.Sensor

	// Now anchors default timestamps and the future-drift check.
	// Zero means time.Now().
	Now time.Time
}

type decoderFunc func(raw []byte, sensors []models.Sensor, now time.Time) ([]models.Measurement, error)

var decoders = map[string]decoderFunc{
	TypeJSON:      decodeJSON,
	TypeCSV:       decodeCSV,
	TypeLuftdaten: decodeLuftdaten,
	TypeHackair:   decodeHackair,
	TypeBytes:     decodeBytes,
	TypeBytesTS:   decodeBytesTS,
}

// NormalizeContentType reduces a raw Content-Type header to a decoder id.
// Parameters are stripped and matching is case-insensitive: any type
// containing "json" maps to application/json, any containing "csv" to
// text/csv; the binary and vendor ids must match exactly.
func NormalizeContentType(contentType string) string {
	ct := contentType
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))

	switch {
	case strings.Contains(ct, "json"):
		return TypeJSON
	case strings.Contains(ct, "csv"):
		return TypeCSV
	default:
		return ct
	}
}

// HasDecoder reports whether a decoder exists for the normalized type.
func HasDecoder(normalizedType string) bool {
	_, ok := decoders[normalizedType]
	return ok
}

// DecodeMeasurements decodes a raw payload into canonical measurements.
// The content type in opts is normalized first; an unknown type yields
// ErrNoDecoder. Every other failure is a *Error wrapping the cause.
func DecodeMeasurements(raw []byte, opts Options) ([]models.Measurement, error) {
	ct := NormalizeContentType(opts.ContentType)
	decode, ok := decoders[ct]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoDecoder, opts.ContentType)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	measurements, err := decode(raw, opts.Sensors, now.UTC())
	if err != nil {
		var decErr *Error
		if errors.As(err, &decErr) {
			return nil, err
		}
		return nil, &Error{cause: err}
	}
	return measurements, nil
}

// parseTime parses an explicit measurement timestamp. RFC3339 with optional
// fractional seconds is the only accepted format.
func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, decodeErrorf("invalid timestamp %q: %v", value, err)
	}
	return t.UTC(), nil
}
