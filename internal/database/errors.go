// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package database

import (
	"errors"
	"io"
)

var (
	// ErrDuplicateEvent is returned when an insert collides with an existing id.
	ErrDuplicateEvent = errors.New("event already exists")

	// ErrEventNotFound is returned when no event has the requested id.
	ErrEventNotFound = errors.New("event not found")

	// ErrStoreWrite wraps failed writes.
	ErrStoreWrite = errors.New("store write failed")
)

// closeQuietly closes a resource and explicitly ignores any error.
// Use it on error paths where a Close failure is not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
