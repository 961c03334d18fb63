// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package push

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/models"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeConn struct {
	mu         sync.Mutex
	open       bool
	connectErr error
	publishErr error
	hang       bool
	sent       []published
	closed     bool
}

func (f *fakeConn) Connect() mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr == nil {
		f.open = true
	}
	return newToken(f.connectErr, true)
}

func (f *fakeConn) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, published{topic, qos, retained, payload.([]byte)})
	return newToken(f.publishErr, !f.hang)
}

func (f *fakeConn) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closed = true
}

func (f *fakeConn) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func testClient(t *testing.T, fc *fakeConn) *Client {
	t.Helper()
	c := NewClient(&config.MQTTConfig{
		BrokerURL:      "tcp://127.0.0.1:1",
		Topic:          "earthquakes/alerts",
		PriorityPrefix: "earthquake",
		PublishTimeout: 50 * time.Millisecond,
		ConnectTimeout: 50 * time.Millisecond,
	})
	c.conn = fc
	return c
}

func alertLevel(s string) *string { return &s }

func sampleEvent() *models.SeismicEvent {
	return &models.SeismicEvent{
		ID:         "us1000abcd",
		Magnitude:  5.8,
		Depth:      10.5,
		Location:   models.Location{Latitude: 35.1, Longitude: -118.2, Place: "10km N of Ridgecrest, CA"},
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		AlertLevel: alertLevel("yellow"),
		Tsunami:    true,
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(&config.MQTTConfig{BrokerURL: "tcp://localhost:1883"})
	if !strings.HasPrefix(c.ClientID(), "quakewatch-") || len(c.ClientID()) != len("quakewatch-")+8 {
		t.Errorf("ClientID() = %q, want quakewatch-<8 hex>", c.ClientID())
	}
	if c.HeartbeatTopic() != "earthquakes/alerts/heartbeat" {
		t.Errorf("HeartbeatTopic() = %q", c.HeartbeatTopic())
	}
	if c.PriorityTopic("high") != "earthquake/alert/high" {
		t.Errorf("PriorityTopic(high) = %q", c.PriorityTopic("high"))
	}
	if c.IsConnected() {
		t.Error("client should not be connected before Connect")
	}
}

func TestConnect(t *testing.T) {
	fc := &fakeConn{}
	c := testClient(t, fc)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	c.Disconnect()
	if c.IsConnected() || !fc.closed {
		t.Error("Disconnect should close the connection")
	}
}

func TestConnectFailure(t *testing.T) {
	c := testClient(t, &fakeConn{connectErr: errors.New("connection refused")})
	err := c.Connect(context.Background())
	if !errors.Is(err, ErrPushNotConnected) {
		t.Errorf("Connect() = %v, want ErrPushNotConnected", err)
	}
}

func TestPublishAlertTopicsAndPayload(t *testing.T) {
	fc := &fakeConn{open: true}
	c := testClient(t, fc)

	if err := c.PublishAlert(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("PublishAlert: %v", err)
	}
	if len(fc.sent) != 2 {
		t.Fatalf("publishes = %d, want 2", len(fc.sent))
	}

	first, second := fc.sent[0], fc.sent[1]
	if first.topic != "earthquake/alert/high" || first.qos != 1 || first.retained {
		t.Errorf("priority publish = %s qos=%d retained=%v", first.topic, first.qos, first.retained)
	}
	if second.topic != "earthquakes/alerts" || second.qos != 1 || second.retained {
		t.Errorf("general publish = %s qos=%d retained=%v", second.topic, second.qos, second.retained)
	}

	var payload AlertPayload
	if err := json.Unmarshal(first.payload, &payload); err != nil {
		t.Fatalf("decode priority payload: %v", err)
	}
	if payload.Title != "Earthquake Alert - M5.8" {
		t.Errorf("Title = %q", payload.Title)
	}
	if payload.Body != "10km N of Ridgecrest, CA\nDepth: 10.5km" {
		t.Errorf("Body = %q", payload.Body)
	}
	d := payload.Data
	if d.ID != "us1000abcd" || d.Priority != "high" || !d.Tsunami || d.Alert == nil || *d.Alert != "yellow" {
		t.Errorf("Data = %+v", d)
	}
	if d.PublishedAt.IsZero() || !d.Timestamp.Equal(sampleEvent().OccurredAt) {
		t.Errorf("timestamps = %v / %v", d.Timestamp, d.PublishedAt)
	}

	var data AlertData
	if err := json.Unmarshal(second.payload, &data); err != nil {
		t.Fatalf("decode general payload: %v", err)
	}
	if data.ID != d.ID || data.Priority != d.Priority {
		t.Errorf("general data = %+v, want copy of %+v", data, d)
	}
}

func TestPublishAlertErrors(t *testing.T) {
	tests := []struct {
		name    string
		conn    *fakeConn
		wantErr error
		sent    int
	}{
		{"disconnected", &fakeConn{}, ErrPushNotConnected, 0},
		{"broker error", &fakeConn{open: true, publishErr: errors.New("not authorized")}, ErrPushFailed, 1},
		{"ack timeout", &fakeConn{open: true, hang: true}, ErrPushFailed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, tt.conn)
			err := c.PublishAlert(context.Background(), sampleEvent())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PublishAlert() = %v, want %v", err, tt.wantErr)
			}
			if len(tt.conn.sent) != tt.sent {
				t.Errorf("publishes = %d, want %d", len(tt.conn.sent), tt.sent)
			}
		})
	}
}

func TestPublishHeartbeat(t *testing.T) {
	fc := &fakeConn{open: true}
	c := testClient(t, fc)
	if err := c.PublishHeartbeat(context.Background()); err != nil {
		t.Fatalf("PublishHeartbeat: %v", err)
	}
	hb := fc.sent[0]
	if hb.topic != "earthquakes/alerts/heartbeat" || hb.qos != 0 || !hb.retained {
		t.Errorf("heartbeat = %s qos=%d retained=%v", hb.topic, hb.qos, hb.retained)
	}
	var body Heartbeat
	if err := json.Unmarshal(hb.payload, &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "online" || body.ClientID != c.ClientID() {
		t.Errorf("heartbeat body = %+v", body)
	}
}

func TestHeartbeatServiceStopsOnCancel(t *testing.T) {
	fc := &fakeConn{open: true}
	svc := NewHeartbeatService(testClient(t, fc), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.sent) < 2 {
		t.Errorf("heartbeats = %d, want at least 2", len(fc.sent))
	}
}
