// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Topics a client can subscribe to.
const (
	TopicUpdates = "updates"
)

// Message types for WebSocket communication
const (
	MessageTypeConnection   = "connection"
	MessageTypeServerStatus = "server-status"
	MessageTypeNewEvent     = "new-event"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypeError        = "error"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"

	// Inbound control messages.
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"

	// Aliases kept for existing dashboards.
	MessageTypeSubscribeEarthquakes   = "subscribe-earthquakes"
	MessageTypeUnsubscribeEarthquakes = "unsubscribe-earthquakes"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ServerStatus is the payload of server-status messages.
type ServerStatus struct {
	Connected  bool       `json:"connected"`
	LastUpdate *time.Time `json:"lastUpdate"`
}

// envelope is a queued broadcast. An empty topic reaches every client.
type envelope struct {
	topic string
	msg   Message
}

// Hub maintains the set of active clients and routes messages by topic.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	statusMu sync.RWMutex
	status   ServerStatus
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until ctx is cancelled, then closes every
// client and returns ctx.Err().
//
// Selection is prioritized: shutdown, then client lifecycle, then
// broadcasts, so a client registered before a broadcast always gets it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case env := <-h.broadcast:
			h.broadcastToClients(env)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

// String names the service in supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(count))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", count).Msg("websocket client connected")

	// greeting and current status go to the new client only
	client.trySend(Message{Type: MessageTypeConnection, Data: "Successfully connected to earthquake server"})
	client.trySend(Message{Type: MessageTypeServerStatus, Data: h.Status()})
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closeSend()
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(count))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", count).Msg("websocket client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ConnectedCount()
	h.closeAllClients()

	// ctx.Err() is expected here and is not logged as an error
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns clients in id order. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients delivers env in client id order. Clients whose send
// buffer is full are dropped.
func (h *Hub) broadcastToClients(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		if env.topic != "" && !client.Subscribed(env.topic) {
			continue
		}
		if !client.trySend(env.msg) {
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		client.closeSend()
		delete(h.clients, client)
		logging.Warn().Uint64("client_id", client.id).Msg("websocket client too slow, disconnecting")
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		client.closeSend()
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// Publish queues a message for the subscribers of topic and returns how
// many were subscribed. A full broadcast queue drops the message and
// returns 0. It satisfies alert.Broadcaster.
func (h *Hub) Publish(topic, msgType string, data interface{}) int {
	n := h.subscriberCount(topic)

	select {
	case h.broadcast <- envelope{topic: topic, msg: Message{Type: msgType, Data: data}}:
		metrics.BroadcastsSent.WithLabelValues(msgType).Inc()
		return n
	default:
		metrics.BroadcastsDropped.Inc()
		logging.Warn().Str("topic", topic).Str("message_type", msgType).Msg("broadcast channel full, dropping message")
		return 0
	}
}

// BroadcastStatus records the current status and sends it to every client.
func (h *Hub) BroadcastStatus(connected bool, lastUpdate *time.Time) {
	status := ServerStatus{Connected: connected, LastUpdate: lastUpdate}
	h.statusMu.Lock()
	h.status = status
	h.statusMu.Unlock()

	select {
	case h.broadcast <- envelope{msg: Message{Type: MessageTypeServerStatus, Data: status}}:
		metrics.BroadcastsSent.WithLabelValues(MessageTypeServerStatus).Inc()
	default:
		metrics.BroadcastsDropped.Inc()
		logging.Warn().Msg("broadcast channel full, dropping server-status message")
	}
}

// Status returns the last broadcast server status.
func (h *Hub) Status() ServerStatus {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()
	return h.status
}

// ConnectedCount returns the number of connected clients
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.Subscribed(topic) {
			n++
		}
	}
	return n
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
