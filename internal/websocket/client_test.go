// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// setupHubServer serves hub clients over a real websocket.
func setupHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		client := NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialWebSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func TestNewClient(t *testing.T) {
	hub := NewHub()
	a, b := NewClient(hub, nil), NewClient(hub, nil)
	if b.ID() <= a.ID() {
		t.Errorf("client ids should increase: %d then %d", a.ID(), b.ID())
	}
	if cap(a.send) != 256 {
		t.Errorf("send buffer = %d, want 256", cap(a.send))
	}
	if a.Subscribed(TopicUpdates) {
		t.Error("new client should have no subscriptions")
	}
}

func TestClient_Constants(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod %v must be shorter than pongWait %v", pingPeriod, pongWait)
	}
	if writeWait != 10*time.Second {
		t.Errorf("writeWait = %v", writeWait)
	}
}

func TestClient_EndToEndSubscription(t *testing.T) {
	hub := setupHub(t)
	conn := dialWebSocket(t, setupHubServer(t, hub))

	if msg := readMessage(t, conn); msg["type"] != MessageTypeConnection {
		t.Fatalf("first message = %v", msg)
	}
	status := readMessage(t, conn)
	if status["type"] != MessageTypeServerStatus {
		t.Fatalf("second message = %v", status)
	}
	data := status["data"].(map[string]interface{})
	if _, ok := data["connected"]; !ok {
		t.Errorf("server-status data = %v, want connected field", data)
	}

	if err := conn.WriteJSON(Message{Type: MessageTypeSubscribeEarthquakes}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg["type"] != MessageTypeSubscribed || msg["data"] != TopicUpdates {
		t.Fatalf("ack = %v", msg)
	}

	waitFor(t, "subscription", func() bool { return hub.subscriberCount(TopicUpdates) == 1 })
	if n := hub.Publish(TopicUpdates, MessageTypeNewEvent, map[string]interface{}{"id": "us1000abcd"}); n != 1 {
		t.Errorf("Publish() = %d, want 1", n)
	}
	msg := readMessage(t, conn)
	if msg["type"] != MessageTypeNewEvent || msg["data"].(map[string]interface{})["id"] != "us1000abcd" {
		t.Errorf("broadcast = %v", msg)
	}
}

func TestClient_DisconnectUnregisters(t *testing.T) {
	hub := setupHub(t)
	conn := dialWebSocket(t, setupHubServer(t, hub))
	readMessage(t, conn)
	waitFor(t, "registration", func() bool { return hub.ConnectedCount() == 1 })

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitFor(t, "unregistration", func() bool { return hub.ConnectedCount() == 0 })
}
