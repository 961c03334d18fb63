// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/quakewatch/internal/config"
)

// mockJetStream records stream calls. Returned streams are nil because
// StreamInitializer never calls methods on them.
type mockJetStream struct {
	mu          sync.Mutex
	streams     map[string]jetstream.StreamConfig
	streamErr   error
	createErr   error
	updateErr   error
	createCalls int
	updateCalls int
}

func newMockJetStream() *mockJetStream {
	return &mockJetStream{streams: map[string]jetstream.StreamConfig{}}
}

func (m *mockJetStream) Stream(_ context.Context, name string) (jetstream.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	if _, ok := m.streams[name]; !ok {
		return nil, jetstream.ErrStreamNotFound
	}
	return nil, nil
}

func (m *mockJetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.streams[cfg.Name] = cfg
	return nil, nil
}

func (m *mockJetStream) UpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.streams[cfg.Name] = cfg
	return nil, nil
}

func TestNewStreamInitializerRequiresArgs(t *testing.T) {
	cfg := DefaultStreamConfig()
	if _, err := NewStreamInitializer(nil, &cfg); err == nil {
		t.Error("nil JetStream should fail")
	}
	if _, err := NewStreamInitializer(newMockJetStream(), nil); err == nil {
		t.Error("nil config should fail")
	}
}

func TestEnsureStreamCreatesThenUpdates(t *testing.T) {
	js := newMockJetStream()
	cfg := DefaultStreamConfig()
	si, err := NewStreamInitializer(js, &cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if si.IsHealthy(ctx) {
		t.Error("missing stream should not be healthy")
	}
	if _, err := si.EnsureStream(ctx); err != nil {
		t.Fatalf("EnsureStream: %v", err)
	}
	if js.createCalls != 1 || js.updateCalls != 0 {
		t.Errorf("create=%d update=%d, want 1/0", js.createCalls, js.updateCalls)
	}

	got := js.streams["QUAKEWATCH_ALERTS"]
	if len(got.Subjects) != 1 || got.Subjects[0] != "quakewatch.alerts.>" {
		t.Errorf("subjects = %v", got.Subjects)
	}
	if got.Storage != jetstream.FileStorage || got.Duplicates != 2*time.Minute {
		t.Errorf("unexpected stream config: %+v", got)
	}

	// restart: idempotent update in place
	for i := 0; i < 2; i++ {
		if _, err := si.EnsureStream(ctx); err != nil {
			t.Fatalf("EnsureStream #%d: %v", i+2, err)
		}
	}
	if js.createCalls != 1 || js.updateCalls != 2 {
		t.Errorf("create=%d update=%d, want 1/2", js.createCalls, js.updateCalls)
	}
	if !si.IsHealthy(ctx) {
		t.Error("stream should be healthy")
	}
}

func TestEnsureStreamErrors(t *testing.T) {
	cfg := DefaultStreamConfig()
	sentinel := errors.New("js down")

	tests := []struct {
		name  string
		setup func(*mockJetStream)
	}{
		{"lookup fails", func(m *mockJetStream) { m.streamErr = sentinel }},
		{"create fails", func(m *mockJetStream) { m.createErr = sentinel }},
		{"update fails", func(m *mockJetStream) {
			m.streams[cfg.Name] = jetstream.StreamConfig{Name: cfg.Name}
			m.updateErr = sentinel
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			js := newMockJetStream()
			tt.setup(js)
			si, _ := NewStreamInitializer(js, &cfg)
			if _, err := si.EnsureStream(context.Background()); !errors.Is(err, sentinel) {
				t.Errorf("err = %v, want wrapped sentinel", err)
			}
		})
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{
		NATS: config.NATSConfig{
			URL:         "nats://127.0.0.1:4333",
			Host:        "127.0.0.1",
			Port:        4333,
			StoreDir:    "/tmp/js",
			StreamName:  "ALERTS_TEST",
			DurableName: "worker-test",
			AckWait:     10 * time.Second,
		},
		Alert: config.AlertConfig{
			MaxAttempts:     5,
			InitialInterval: 2 * time.Second,
			MaxInterval:     time.Minute,
			Multiplier:      3,
			PoisonTopic:     "quakewatch.alerts.dead",
		},
	}

	s := SettingsFromConfig(cfg)
	if s.Stream.Name != "ALERTS_TEST" || s.Subscriber.StreamName != "ALERTS_TEST" {
		t.Errorf("stream name not propagated: %q / %q", s.Stream.Name, s.Subscriber.StreamName)
	}
	if s.Subscriber.DurableName != "worker-test" || s.Subscriber.AckWaitTimeout != 10*time.Second {
		t.Errorf("subscriber = %+v", s.Subscriber)
	}
	if s.Publisher.URL != "nats://127.0.0.1:4333" {
		t.Errorf("publisher URL = %q", s.Publisher.URL)
	}
	if s.Router.MaxAttempts != 5 || s.Router.Multiplier != 3 || s.Router.PoisonTopic != "quakewatch.alerts.dead" {
		t.Errorf("router = %+v", s.Router)
	}
	if s.Server.Port != 4333 || s.Server.StoreDir != "/tmp/js" {
		t.Errorf("server = %+v", s.Server)
	}
}
