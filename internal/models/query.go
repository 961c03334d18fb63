// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package models

import "time"

// Default and maximum page sizes for event queries.
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// EventFilter selects events for findAll style queries. Nil fields are not
// applied. Results are always ordered newest first by OccurredAt.
type EventFilter struct {
	MinMagnitude     *float64
	MaxMagnitude     *float64
	Location         string // case-insensitive substring of the place name
	StartDate        *time.Time
	EndDate          *time.Time
	Processed        *bool
	NotificationSent *bool
	Limit            int
	Offset           int
}

// IsSimple reports whether the filter is unconstrained apart from paging,
// which makes it eligible to be served from the recency window.
func (f *EventFilter) IsSimple() bool {
	return f.MinMagnitude == nil && f.MaxMagnitude == nil &&
		f.Location == "" && f.StartDate == nil && f.EndDate == nil &&
		f.Processed == nil && f.NotificationSent == nil
}

// Normalize applies the default limit and clamps paging values.
func (f *EventFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
