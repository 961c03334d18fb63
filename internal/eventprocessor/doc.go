// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package eventprocessor provides the durable queue plumbing behind alert
delivery.

Jobs travel over NATS JetStream through Watermill:

	Publisher (watermill-nats) -> stream QUAKEWATCH_ALERTS -> Subscriber
	    -> Router [Abandon -> Retry -> Recoverer] -> handler

Components:

  - EmbeddedServer: optional in-process nats-server with JetStream
  - StreamInitializer: idempotent stream create-or-update
  - Publisher and Subscriber: watermill-nats wrappers with reconnect handling
  - Router: a Watermill router with bounded exponential retry and an
    outer abandonment hook that acks jobs after the final failed attempt

The router accepts any message.Subscriber, so tests drive it with the
Watermill gochannel pub/sub instead of a broker.
*/
package eventprocessor
