// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package ingest

import "errors"

// Error names form the closed set the HTTP boundary maps to status codes.
const (
	NameUnauthorized         = "UnauthorizedError"
	NameNotFound             = "NotFoundError"
	NameUnprocessableEntity  = "UnprocessableEntityError"
	NameUnsupportedMediaType = "UnsupportedMediaTypeError"
)

// Error is a typed ingestion failure. Name discriminates the error class
// for the boundary layer; Message is safe to surface to callers.
type Error struct {
	Name    string
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// AsError extracts an ingestion error from an error chain.
func AsError(err error) (*Error, bool) {
	var ingErr *Error
	ok := errors.As(err, &ingErr)
	return ingErr, ok
}

func unauthorized(message string) *Error {
	return &Error{Name: NameUnauthorized, Message: message}
}

func notFound(message string) *Error {
	return &Error{Name: NameNotFound, Message: message}
}

func unprocessable(message string, cause error) *Error {
	return &Error{Name: NameUnprocessableEntity, Message: message, cause: cause}
}

func unsupportedMedia(message string) *Error {
	return &Error{Name: NameUnsupportedMediaType, Message: message}
}
