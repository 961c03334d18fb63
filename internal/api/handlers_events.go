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

	"github.com/tomtom215/quakewatch/internal/alert"
	"github.com/tomtom215/quakewatch/internal/database"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
	"github.com/tomtom215/quakewatch/internal/validation"
)

// Events lists events newest first.
//
// An unfiltered page that fits inside the recency window is answered from
// the cache; anything else goes to the store, as do cache failures and
// pages the window cannot fill.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filter, verr := parseEventsQuery(r)
	if verr != nil {
		respondAPIError(w, r, http.StatusBadRequest, verr.ToAPIError())
		return
	}

	events, cached, err := h.findEvents(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to query events", err)
		return
	}
	if events == nil {
		events = []models.SeismicEvent{}
	}

	respondSuccess(w, r, http.StatusOK, events, models.Metadata{
		QueryTimeMS: time.Since(start).Milliseconds(),
		Cached:      cached,
	})
}

func (h *Handler) findEvents(ctx context.Context, filter *models.EventFilter) ([]models.SeismicEvent, bool, error) {
	if h.cache != nil && filter.IsSimple() && filter.Offset+filter.Limit <= h.cache.Capacity() {
		events, err := h.cache.RangeLatest(ctx, filter.Offset, filter.Limit)
		if err == nil && len(events) > 0 && !h.shortPage(len(events), filter) {
			metrics.RecordCacheRead("latest", true)
			return events, true, nil
		}
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("Recency window read failed, using store")
		}
		metrics.RecordCacheRead("latest", false)
	}

	events, err := h.store.FindEvents(ctx, *filter)
	return events, false, err
}

// shortPage reports whether a page of n events came up short because the
// window holds fewer events than the page reaches, as after a restart with
// an empty cache. The store may know about older events in that case.
func (h *Handler) shortPage(n int, filter *models.EventFilter) bool {
	return n < filter.Limit && h.cache.Len() < filter.Offset+filter.Limit
}

// Event returns one event, preferring the detail cache. A store read
// repopulates the cache entry.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if h.cache != nil {
		ev, err := h.cache.GetDetail(ctx, id)
		if err == nil {
			metrics.RecordCacheRead("detail", true)
			respondSuccess(w, r, http.StatusOK, ev, models.Metadata{
				QueryTimeMS: time.Since(start).Milliseconds(),
				Cached:      true,
			})
			return
		}
		metrics.RecordCacheRead("detail", false)
	}

	ev, err := h.store.GetEvent(ctx, id)
	if errors.Is(err, database.ErrEventNotFound) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Event not found", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to load event", err)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetDetail(ctx, ev); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Str("event_id", id).Msg("Detail cache refill skipped")
		}
	}
	respondSuccess(w, r, http.StatusOK, ev, models.Metadata{QueryTimeMS: time.Since(start).Milliseconds()})
}

// RealertResponse acknowledges a manual re-alert.
type RealertResponse struct {
	ID     string `json:"id"`
	Queued bool   `json:"queued"`
}

// Realert re-enqueues the alert job of an event that was never delivered.
func (h *Handler) Realert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	err := h.alerts.Realert(r.Context(), id)
	switch {
	case err == nil:
		respondSuccess(w, r, http.StatusAccepted, RealertResponse{ID: id, Queued: true}, models.Metadata{})
	case errors.Is(err, database.ErrEventNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Event not found", nil)
	case errors.Is(err, alert.ErrAlreadyNotified):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "Alert already delivered for this event", nil)
	default:
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeQueueError, "Failed to enqueue alert", err)
	}
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := eventIDParam{ID: chi.URLParam(r, "id")}
	if verr := validation.ValidateStruct(&p); verr != nil {
		respondAPIError(w, r, http.StatusBadRequest, verr.ToAPIError())
		return "", false
	}
	return p.ID, true
}
