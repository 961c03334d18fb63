// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package models

import (
	"time"
)

// Stats represents overall pipeline statistics
type Stats struct {
	Total                int64      `json:"total"`
	Last24h              int64      `json:"last_24h"`
	SignificantCount     int64      `json:"significant_count"`
	LastFetchTime        *time.Time `json:"last_fetch_time"`
	ConnectedSubscribers int        `json:"connected_subscribers"`
	PushChannelConnected bool       `json:"push_channel_connected"`
	FeedHealthy          bool       `json:"feed_healthy"`
	AbandonedAlerts      int64      `json:"abandoned_alerts"`
}

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
)

// HealthReport is the result of a health check
type HealthReport struct {
	Status    string                     `json:"status"`
	Details   map[string]ComponentHealth `json:"details"`
	CheckedAt time.Time                  `json:"checked_at"`
}

// ComponentHealth describes one dependency
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
