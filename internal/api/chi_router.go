// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/quakewatch/internal/middleware"
)

// Router owns the handler and the middleware factory.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil mw uses the default middleware config.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi builds the route tree.
//
//	GET  /metrics
//	GET  /api/v1/health
//	GET  /api/v1/health/live
//	GET  /api/v1/events
//	GET  /api/v1/events/{id}
//	POST /api/v1/events/{id}/realert
//	GET  /api/v1/stats
//	POST /api/v1/fetch/{kind}
//	GET  /api/v1/ws
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	h := router.handler
	r.Route("/api/v1", func(r chi.Router) {
		// Probes are not rate limited.
		r.Get("/health", h.Health)
		r.Get("/health/live", h.HealthLive)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())

			r.Get("/events", h.Events)
			r.Get("/events/{id}", h.Event)
			r.Post("/events/{id}/realert", h.Realert)
			r.Get("/stats", h.Stats)
			r.Post("/fetch/{kind}", h.TriggerFetch)
			r.Get("/ws", h.WebSocket)
		})
	})

	return r
}
