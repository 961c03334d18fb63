// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package alert

// Priority is the informational urgency attached to push payloads.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// PriorityFor maps a magnitude to a priority.
func PriorityFor(magnitude float64) Priority {
	switch {
	case magnitude >= 7.0:
		return PriorityCritical
	case magnitude >= 5.5:
		return PriorityHigh
	case magnitude >= 4.0:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
