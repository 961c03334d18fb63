// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package alert

import (
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
)

// AbandonStatus is a snapshot of abandoned deliveries.
type AbandonStatus struct {
	Count       int64
	LastEventID string
	LastError   string
	LastAt      time.Time
}

// Tracker records abandoned alert jobs. Any abandonment marks alerting as
// degraded; the event itself stays queryable with notificationSent false.
type Tracker struct {
	mu     sync.RWMutex
	status AbandonStatus
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordAbandon notes that the job for eventID was given up on.
func (t *Tracker) RecordAbandon(eventID string, err error) {
	t.mu.Lock()
	t.status.Count++
	t.status.LastEventID = eventID
	t.status.LastError = ""
	if err != nil {
		t.status.LastError = err.Error()
	}
	t.status.LastAt = time.Now().UTC()
	t.mu.Unlock()

	metrics.AlertsAbandoned.Inc()
	logging.Error().Err(err).Str("event_id", eventID).Msg("Alert delivery abandoned")
}

// OnAbandon adapts RecordAbandon to the router's abandonment hook.
func (t *Tracker) OnAbandon(msg *message.Message, err error) {
	t.RecordAbandon(msg.Metadata.Get(MetadataEventID), err)
}

// Status returns a copy of the current counters.
func (t *Tracker) Status() AbandonStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Degraded reports whether any job has been abandoned.
func (t *Tracker) Degraded() bool {
	return t.Status().Count > 0
}
