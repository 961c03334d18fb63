// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/quakewatch/internal/alert"
	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/eventprocessor"
	"github.com/tomtom215/quakewatch/internal/logging"
)

// alertQueue holds the durable alert queue: broker, stream, producer and
// the consumer router. The router itself is run by the supervisor tree.
type alertQueue struct {
	server     *eventprocessor.EmbeddedServer
	natsConn   *natsgo.Conn
	publisher  *eventprocessor.Publisher
	subscriber *eventprocessor.Subscriber
	router     *eventprocessor.Router
}

// initAlertQueue starts (or connects to) NATS, ensures the alert stream
// and wires worker.Handle behind the retry/abandon router. On error every
// component created so far is closed.
func initAlertQueue(ctx context.Context, cfg *config.Config, worker *alert.Worker, tracker *alert.Tracker) (*alertQueue, error) {
	settings := eventprocessor.SettingsFromConfig(cfg)
	q := &alertQueue{}
	ready := false
	defer func() {
		if !ready {
			q.Close(context.Background())
		}
	}()

	var err error

	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		q.server, err = eventprocessor.NewEmbeddedServer(&settings.Server)
		if err != nil {
			return nil, err
		}
		natsURL = q.server.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	} else {
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	q.natsConn, err = natsgo.Connect(natsURL,
		natsgo.Name("quakewatch"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(q.natsConn)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	streams, err := eventprocessor.NewStreamInitializer(js, &settings.Stream)
	if err != nil {
		return nil, err
	}
	stream, err := streams.EnsureStream(ctx)
	if err != nil {
		return nil, err
	}
	info := stream.CachedInfo()
	logging.Info().
		Str("name", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Dur("max_age", info.Config.MaxAge).
		Msg("JetStream stream ready")

	q.publisher, err = eventprocessor.NewPublisher(
		eventprocessor.DefaultPublisherConfig(natsURL),
		logging.NewWatermillAdapter("alert-publisher"),
	)
	if err != nil {
		return nil, err
	}

	subCfg := settings.Subscriber
	subCfg.URL = natsURL
	q.subscriber, err = eventprocessor.NewSubscriber(&subCfg, logging.NewWatermillAdapter("alert-subscriber"))
	if err != nil {
		return nil, err
	}

	var poison message.Publisher
	if settings.Router.PoisonTopic != "" {
		poison = q.publisher
	}
	q.router, err = eventprocessor.NewRouter(&settings.Router, poison, tracker.OnAbandon, logging.NewWatermillAdapter("alert-router"))
	if err != nil {
		return nil, err
	}
	q.router.AddConsumerHandler("alert-worker", eventprocessor.TopicSend, q.subscriber, worker.Handle)

	logging.Info().
		Int("max_attempts", settings.Router.MaxAttempts).
		Dur("initial_interval", settings.Router.InitialInterval).
		Str("poison_topic", settings.Router.PoisonTopic).
		Msg("Alert queue initialized")
	ready = true
	return q, nil
}

// Queue returns the producer side used by the dispatcher.
func (q *alertQueue) Queue() *alert.MessageQueue {
	return alert.NewMessageQueue(q.publisher, eventprocessor.TopicSend)
}

// Close releases everything except the router, which the supervisor
// closes. Safe on a partially initialized queue.
func (q *alertQueue) Close(ctx context.Context) {
	if q == nil {
		return
	}
	if q.subscriber != nil {
		if err := q.subscriber.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing alert subscriber")
		}
	}
	if q.publisher != nil {
		if err := q.publisher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing alert publisher")
		}
	}
	if q.natsConn != nil {
		q.natsConn.Close()
	}
	if q.server != nil {
		if err := q.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS server did not stop cleanly")
		}
	}
}
