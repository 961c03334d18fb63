// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package middleware provides the HTTP middleware shared by the API router.

  - RequestID: assigns or propagates X-Request-ID and seeds the request's
    logger with request_id and correlation_id fields.
  - PrometheusMetrics: observes api_request_duration_seconds labelled by
    method, chi route pattern and status.

Both are plain func(http.Handler) http.Handler values and plug straight
into chi's r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
