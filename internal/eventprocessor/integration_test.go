// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

//go:build integration

package eventprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// TestEmbeddedJetStreamRoundTrip publishes one job through the embedded
// server and consumes it with the router.
func TestEmbeddedJetStreamRoundTrip(t *testing.T) {
	srv, err := NewEmbeddedServer(&ServerConfig{
		Host:              "127.0.0.1",
		Port:              -1,
		StoreDir:          t.TempDir(),
		JetStreamMaxMem:   64 << 20,
		JetStreamMaxStore: 64 << 20,
	})
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if !srv.JetStreamEnabled() {
		t.Fatal("JetStream should be enabled")
	}

	nc, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatal(err)
	}

	streamCfg := DefaultStreamConfig()
	si, err := NewStreamInitializer(js, &streamCfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := si.EnsureStream(ctx); err != nil {
		t.Fatalf("EnsureStream: %v", err)
	}

	pub, err := NewPublisher(DefaultPublisherConfig(srv.ClientURL()), watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	subCfg := DefaultSubscriberConfig(srv.ClientURL())
	subCfg.StreamName = streamCfg.Name
	sub, err := NewSubscriber(&subCfg, watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	r, err := NewRouter(ptr(DefaultRouterConfig()), nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := make(chan string, 1)
	r.AddConsumerHandler("round-trip", TopicSend, sub, func(msg *message.Message) error {
		got <- string(msg.Payload)
		return nil
	})
	go func() { _ = r.Run(ctx) }()
	<-r.Running()

	if err := pub.Publish(TopicSend, message.NewMessage(watermill.NewUUID(), []byte(`{"id":"us1"}`))); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case payload := <-got:
		if payload != `{"id":"us1"}` {
			t.Errorf("payload = %s", payload)
		}
	case <-ctx.Done():
		t.Fatal("job not delivered")
	}
	_ = r.Close()
}
