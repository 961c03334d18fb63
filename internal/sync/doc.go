// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package sync orchestrates fetch cycles.

A cycle fetches one feed kind, hands the features to the dedup/upsert
engine in feed order, and dispatches every new or revised event to the
alert dispatcher. Afterwards it records the last successful fetch time,
updates feed health and broadcasts server status to live clients.

Cycles are started by the scheduler (latest, significant, catch-up) or on
demand through TriggerFetch, which is throttled by a token bucket from
golang.org/x/time/rate:

	mgr := sync.NewManager(sync.Config{
	    Fetcher:             feedClient,
	    Processor:           engine,
	    Dispatcher:          dispatcher,
	    Status:              hub,
	    Push:                pushClient,
	    ManualFetchInterval: 10 * time.Second,
	})
	result, err := mgr.TriggerFetch(ctx, feed.KindAllHour)

Cycles of different kinds may run concurrently. Two cycles that see the
same event are reconciled by the store's primary key, so at most one of
them reports it as changed.
*/
package sync
