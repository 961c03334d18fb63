// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package api serves the query and control surface over HTTP using the chi
router.

Every JSON response uses the models.APIResponse envelope:

	{
	  "status": "success",
	  "data": [...],
	  "metadata": {"timestamp": "2026-03-01T12:00:00Z", "query_time_ms": 2, "cached": true}
	}

Errors set status to "error" and carry error.code and error.message; query
validation failures use VALIDATION_ERROR with the offending field in
error.details.

Routes live under /api/v1 (see Router.SetupChi). Event listing is served
from the recency window when the request is unfiltered and fits inside it,
and from DuckDB otherwise. POST /fetch/{kind} runs a fetch cycle
synchronously and answers 202 with the cycle summary, or 429 when the
manual fetch budget is spent. GET /health answers 503 when the store,
cache or push channel is down.

The middleware chain is request id, real IP, panic recovery, CORS and
prometheus timing, with a per-IP httprate limit on everything except the
health checks and /metrics.

Usage:

	handler := api.NewHandler(api.Deps{Store: db, Cache: cache, Stats: agg, Fetch: syncMgr, Alerts: dispatcher, Hub: hub, Config: cfg})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Server)))
	srv := &http.Server{Addr: ":8080", Handler: router.SetupChi()}
*/
package api
