// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package services adapts long-running Quakewatch components to suture v4.

Each wrapper implements suture.Service and fmt.Stringer:

	HTTPServerService     *http.Server, graceful Shutdown on cancel
	WebSocketHubService   websocket.Hub event loop
	MessageRouterService  Watermill router consuming alert jobs
	CacheGCService        periodic Badger value log GC

The scheduler (internal/scheduler) and the push heartbeat
(internal/push) implement suture.Service themselves and are added to the
tree directly.

# Return values

	ctx.Err()               shutdown requested
	error                   crash, the supervisor restarts with backoff
	suture.ErrDoNotRestart  the component cannot be restarted in-process

# Usage

	tree, _ := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewCacheGCService(cache, 10*time.Minute))
	tree.AddAPIService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewMessageRouterService(router, 10*time.Second))
	tree.AddAPIService(services.NewHTTPServerService(server, 30*time.Second))
	err := tree.Serve(ctx)
*/
package services
