// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package models defines the data types shared across Quakewatch packages:
// the canonical SeismicEvent, the raw GeoJSON feature decoded from the feed,
// query filters, and the stats/health reports.
package models

import (
	"time"
)

// SeismicEvent is the canonical record for one earthquake.
//
// Identity comes from the upstream feed (ID) and is unique for the life of
// the system. FeedUpdatedAt is the feed's own revision timestamp in epoch
// milliseconds and is distinct from UpdatedAt, which tracks storage writes.
//
// Lifecycle:
//   - created by the ingest engine on first sighting
//   - mutated in place when the feed publishes a newer revision
//   - mutated once more when an alert is delivered (NotificationSent)
//
// Events are never deleted.
type SeismicEvent struct {
	ID            string    `json:"id"`
	Magnitude     float64   `json:"magnitude"`
	Location      Location  `json:"location"`
	Depth         float64   `json:"depth"`
	OccurredAt    time.Time `json:"occurred_at"`
	FeedUpdatedAt int64     `json:"feed_updated_at"`
	SourceURL     string    `json:"source_url"`
	AlertLevel    *string   `json:"alert_level"`
	Tsunami       bool      `json:"tsunami"`

	// Processed is reserved for downstream consumers.
	Processed bool `json:"processed"`

	// NotificationSent flips to true once an alert has been published and
	// never flips back.
	NotificationSent bool `json:"notification_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is where the event occurred.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Place     string  `json:"place"`
}

// ApplyRevision copies the mutable, feed-derived fields of rev onto e.
// Identity, storage timestamps and the processed/notification flags are
// left untouched.
func (e *SeismicEvent) ApplyRevision(rev *SeismicEvent) {
	e.Magnitude = rev.Magnitude
	e.Location = rev.Location
	e.Depth = rev.Depth
	e.OccurredAt = rev.OccurredAt
	e.FeedUpdatedAt = rev.FeedUpdatedAt
	e.SourceURL = rev.SourceURL
	e.AlertLevel = rev.AlertLevel
	e.Tsunami = rev.Tsunami
}
