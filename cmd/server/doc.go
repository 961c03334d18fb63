// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package main is the entry point for the Quakewatch server.

Quakewatch polls the USGS GeoJSON summary feeds, stores every seismic
event once (revisions update the stored row), keeps a bounded window of
the most recent events in a cache and fans new or revised events out to
WebSocket clients and, above a magnitude threshold, to MQTT subscribers.

# Application Architecture

	RootSupervisor ("quakewatch")
	├── StorageSupervisor ("storage-layer")
	│   └── Badger value log GC
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── Alert Router (JetStream consumer, retry and abandon)
	│   ├── MQTT Heartbeat
	│   └── Scheduler (latest, significant and catch-up fetch jobs)
	└── APISupervisor ("api-layer")
	    ├── WebSocket Hub (live event broadcast)
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Database: DuckDB event store
 4. Cache: Badger recency window and detail cache
 5. Push: MQTT client (startup continues if the broker is down)
 6. Alert queue: NATS JetStream stream, Watermill publisher and router
 7. Sync Manager: feed client, dedup engine and alert dispatcher
 8. Scheduler: recurring fetch jobs
 9. Supervisor Tree: Suture v4 process supervision
 10. HTTP Server: Chi router with middleware stack

# Configuration

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	PORT=6000                    # HTTP server port
	CORS_ORIGIN=http://localhost:3000
	DUCKDB_PATH=/data/quakewatch.duckdb
	CACHE_CAPACITY=1000          # recency window size
	USGS_API_URL=https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary
	MIN_MAGNITUDE_ALERT=4.0      # alert threshold
	MQTT_BROKER_URL=tcp://localhost:1883
	NATS_EMBEDDED_SERVER=true
	LOG_LEVEL=info
	LOG_FORMAT=json

# Signal Handling

On SIGINT or SIGTERM the supervisor tree is cancelled: the HTTP server
drains, the scheduler lets running cycles finish, the alert router stops
consuming and WebSocket clients are closed. The alert queue, MQTT
connection, cache and database are closed afterwards, in that order.
Alert jobs not yet acknowledged stay in the stream and are redelivered on
the next start.

# Endpoints

	GET  /api/v1/health
	GET  /api/v1/health/live
	GET  /api/v1/events
	GET  /api/v1/events/{id}
	POST /api/v1/events/{id}/realert
	GET  /api/v1/stats
	POST /api/v1/fetch/{kind}
	GET  /api/v1/ws
	GET  /metrics
*/
package main
