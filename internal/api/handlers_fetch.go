// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/quakewatch/internal/feed"
	"github.com/tomtom215/quakewatch/internal/models"
	syncpkg "github.com/tomtom215/quakewatch/internal/sync"
)

// TriggerFetch runs one fetch cycle for {kind} and returns its result
// with 202. The cycle is detached from the client connection so a
// disconnect does not abort it halfway.
func (h *Handler) TriggerFetch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	kind := feed.Kind(chi.URLParam(r, "kind"))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.fetchTimeout)
	defer cancel()

	result, err := h.fetch.TriggerFetch(ctx, kind)
	switch {
	case err == nil:
		respondSuccess(w, r, http.StatusAccepted, result, models.Metadata{QueryTimeMS: time.Since(start).Milliseconds()})
	case errors.Is(err, syncpkg.ErrUnknownFeedKind):
		respondError(w, r, http.StatusBadRequest, ErrCodeUnknownFeed, "Unknown feed kind: "+sanitizeLogValue(string(kind)), nil)
	case errors.Is(err, syncpkg.ErrRateLimited):
		respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Manual fetch rate limit exceeded", nil)
	case errors.Is(err, feed.ErrFeedUnavailable):
		respondError(w, r, http.StatusBadGateway, ErrCodeExternalServiceFail, "Feed unavailable", err)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Fetch cycle failed", err)
	}
}
