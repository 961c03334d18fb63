// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/quakewatch/internal/models"
)

// Stats returns pipeline counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to compute statistics", err)
		return
	}
	respondSuccess(w, r, http.StatusOK, stats, models.Metadata{QueryTimeMS: time.Since(start).Milliseconds()})
}

// Health reports dependency status. It answers 503 when any required
// dependency is down; the report is in data either way.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.stats.Health(r.Context())
	if report.Status == models.StatusHealthy {
		respondSuccess(w, r, http.StatusOK, report, models.Metadata{})
		return
	}

	respondJSON(w, r, http.StatusServiceUnavailable, &models.APIResponse{
		Status:   "error",
		Data:     report,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    ErrCodeServiceUnavailable,
			Message: "One or more dependencies are unhealthy",
		},
	})
}

// Uptime is exposed for the liveness check.
type Uptime struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HealthLive answers as long as the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, Uptime{
		Status:        models.StatusOK,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}, models.Metadata{})
}
