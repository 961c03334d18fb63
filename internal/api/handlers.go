// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/feed"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/models"
	syncpkg "github.com/tomtom215/quakewatch/internal/sync"
	ws "github.com/tomtom215/quakewatch/internal/websocket"
)

const defaultFetchTimeout = 60 * time.Second

// EventStore is the durable history.
type EventStore interface {
	FindEvents(ctx context.Context, filter models.EventFilter) ([]models.SeismicEvent, error)
	GetEvent(ctx context.Context, id string) (*models.SeismicEvent, error)
}

// EventCache is the recency window plus the detail cache.
type EventCache interface {
	RangeLatest(ctx context.Context, offset, limit int) ([]models.SeismicEvent, error)
	GetDetail(ctx context.Context, id string) (*models.SeismicEvent, error)
	SetDetail(ctx context.Context, ev *models.SeismicEvent) error
	Len() int
	Capacity() int
}

// StatsProvider answers /stats and /health.
type StatsProvider interface {
	Stats(ctx context.Context) (*models.Stats, error)
	Health(ctx context.Context) *models.HealthReport
}

// FetchTrigger runs a manual fetch cycle.
type FetchTrigger interface {
	TriggerFetch(ctx context.Context, kind feed.Kind) (*syncpkg.CycleResult, error)
}

// Realerter re-enqueues an undelivered alert.
type Realerter interface {
	Realert(ctx context.Context, id string) error
}

// Deps are the collaborators of a Handler. Cache and Hub may be nil.
type Deps struct {
	Store  EventStore
	Cache  EventCache
	Stats  StatsProvider
	Fetch  FetchTrigger
	Alerts Realerter
	Hub    *ws.Hub
	Config *config.Config
}

// Handler contains the dependencies of the HTTP handlers.
//
// Methods are split across files:
//   - handlers_events.go: event listing, detail and re-alert
//   - handlers_health.go: stats and health
//   - handlers_fetch.go: manual fetch trigger
//   - handlers.go: construction and the websocket upgrade
type Handler struct {
	store        EventStore
	cache        EventCache
	stats        StatsProvider
	fetch        FetchTrigger
	alerts       Realerter
	wsHub        *ws.Hub
	config       *config.Config
	fetchTimeout time.Duration
	startTime    time.Time
}

// NewHandler creates a handler over deps.
func NewHandler(deps Deps) *Handler {
	fetchTimeout := defaultFetchTimeout
	if deps.Config != nil && deps.Config.Scheduler.JobTimeout > 0 {
		fetchTimeout = deps.Config.Scheduler.JobTimeout
	}
	return &Handler{
		store:        deps.Store,
		cache:        deps.Cache,
		stats:        deps.Stats,
		fetch:        deps.Fetch,
		alerts:       deps.Alerts,
		wsHub:        deps.Hub,
		config:       deps.Config,
		fetchTimeout: fetchTimeout,
		startTime:    time.Now(),
	}
}

// getUpgrader creates a websocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts any origin when no allow-list is
// configured. Otherwise the Origin header must match an entry or "*".
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	if h.config == nil || len(h.config.WebSocket.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	for _, allowed := range h.config.WebSocket.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// WebSocket upgrades the request and attaches the client to the hub.
// Clients receive server-status immediately and new-event messages once
// subscribed to "updates".
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	select {
	case h.wsHub.Register <- client:
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}
	client.Start()
}
