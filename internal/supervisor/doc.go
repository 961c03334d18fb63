// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package supervisor runs Quakewatch's long-lived services under suture v4.

The tree has three layers that restart independently:

	quakewatch
	├── storage-layer
	│   └── cache-gc
	├── pipeline-layer
	│   ├── alert-router
	│   ├── mqtt-heartbeat
	│   └── scheduler (one child per fetch job)
	└── api-layer
	    ├── websocket-hub
	    └── http-server

Supervisor events (start, failure, backoff, restart) are logged through
sutureslog. main passes a *slog.Logger built on logging.NewSlogHandler so
they end up in the same zerolog stream as everything else.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    FailureThreshold: 5,
	    FailureBackoff:   15 * time.Second,
	    ShutdownTimeout:  10 * time.Second,
	})
	tree.AddAPIService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 30*time.Second))
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor tree stopped")
	}

Wrappers for components that do not implement suture.Service themselves
live in the services subpackage.
*/
package supervisor
