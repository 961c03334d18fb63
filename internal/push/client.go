// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package push publishes alerts to an MQTT broker.
//
// Each alert goes to a priority topic (<prefix>/alert/<priority>) with a
// title/body envelope, then to the general topic with the bare data
// object. A supervised Heartbeat publishes a retained liveness message.
package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/quakewatch/internal/alert"
	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
)

var (
	// ErrPushNotConnected is returned when publishing without a broker connection.
	ErrPushNotConnected = errors.New("push channel not connected")

	// ErrPushFailed is returned when the broker does not acknowledge a publish.
	ErrPushFailed = errors.New("push publish failed")
)

const (
	qosAtLeastOnce byte = 1
	qosAtMostOnce  byte = 0
)

// conn is the subset of mqtt.Client used here.
type conn interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
}

// Client is the push channel.
type Client struct {
	brokerURL      string
	topic          string
	priorityPrefix string
	clientID       string
	connectTimeout time.Duration
	publishTimeout time.Duration

	mu   sync.RWMutex
	conn conn
}

// NewClient builds a client from cfg. Nothing is dialed until Connect.
func NewClient(cfg *config.MQTTConfig) *Client {
	c := &Client{
		brokerURL:      cfg.BrokerURL,
		topic:          cfg.Topic,
		priorityPrefix: cfg.PriorityPrefix,
		clientID:       cfg.ClientID,
		connectTimeout: cfg.ConnectTimeout,
		publishTimeout: cfg.PublishTimeout,
	}
	if c.topic == "" {
		c.topic = "earthquakes/alerts"
	}
	if c.priorityPrefix == "" {
		c.priorityPrefix = "earthquake"
	}
	if c.clientID == "" {
		c.clientID = "quakewatch-" + uuid.New().String()[:8]
	}
	if c.connectTimeout <= 0 {
		c.connectTimeout = 4 * time.Second
	}
	if c.publishTimeout <= 0 {
		c.publishTimeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(c.clientID).
		SetCleanSession(true).
		SetConnectTimeout(c.connectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(mqtt.Client) {
			metrics.SetPushConnected(true)
			logging.Info().Str("broker", c.brokerURL).Msg("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			metrics.SetPushConnected(false)
			logging.Warn().Err(err).Str("broker", c.brokerURL).Msg("MQTT connection lost")
		}).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			logging.Info().Str("broker", c.brokerURL).Msg("Reconnecting to MQTT broker")
		})
	if cfg.ReconnectInterval > 0 {
		opts.SetConnectRetryInterval(cfg.ReconnectInterval)
		opts.SetMaxReconnectInterval(cfg.ReconnectInterval * 30)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.conn = mqtt.NewClient(opts)
	return c
}

// ClientID returns the MQTT client identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// Connect dials the broker and waits up to the connect timeout. On timeout
// the client keeps retrying in the background and an error is returned.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	cn := c.conn
	c.mu.RUnlock()

	token := cn.Connect()
	timer := time.NewTimer(c.connectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("connect to %s: %w", c.brokerURL, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: connect to %s timed out after %s", ErrPushNotConnected, c.brokerURL, c.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: connect to %s: %w", ErrPushNotConnected, c.brokerURL, err)
	}
	return nil
}

// Disconnect closes the connection, allowing in-flight work 250ms.
func (c *Client) Disconnect() {
	c.mu.RLock()
	cn := c.conn
	c.mu.RUnlock()
	cn.Disconnect(250)
	metrics.SetPushConnected(false)
	logging.Info().Str("broker", c.brokerURL).Msg("Disconnected from MQTT broker")
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnectionOpen()
}

// AlertData is the data object of an alert payload.
type AlertData struct {
	ID          string          `json:"id"`
	Magnitude   float64         `json:"magnitude"`
	Location    models.Location `json:"location"`
	Depth       float64         `json:"depth"`
	Timestamp   time.Time       `json:"timestamp"`
	Alert       *string         `json:"alert"`
	Tsunami     bool            `json:"tsunami"`
	PublishedAt time.Time       `json:"publishedAt"`
	Priority    alert.Priority  `json:"priority"`
}

// AlertPayload is published to the priority topic.
type AlertPayload struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Data  AlertData `json:"data"`
}

// Heartbeat is the retained liveness message.
type Heartbeat struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	ClientID  string    `json:"clientId"`
}

// NewAlertPayload builds the payload for ev.
func NewAlertPayload(ev *models.SeismicEvent, now time.Time) AlertPayload {
	priority := alert.PriorityFor(ev.Magnitude)
	return AlertPayload{
		Title: fmt.Sprintf("Earthquake Alert - M%g", ev.Magnitude),
		Body:  fmt.Sprintf("%s\nDepth: %gkm", ev.Location.Place, ev.Depth),
		Data: AlertData{
			ID:          ev.ID,
			Magnitude:   ev.Magnitude,
			Location:    ev.Location,
			Depth:       ev.Depth,
			Timestamp:   ev.OccurredAt,
			Alert:       ev.AlertLevel,
			Tsunami:     ev.Tsunami,
			PublishedAt: now,
			Priority:    priority,
		},
	}
}

// PriorityTopic returns the topic for p.
func (c *Client) PriorityTopic(p alert.Priority) string {
	return c.priorityPrefix + "/alert/" + string(p)
}

// HeartbeatTopic returns the retained heartbeat topic.
func (c *Client) HeartbeatTopic() string {
	return c.topic + "/heartbeat"
}

// PublishAlert publishes ev to its priority topic and then the general
// topic. It satisfies alert.Publisher.
func (c *Client) PublishAlert(ctx context.Context, ev *models.SeismicEvent) error {
	if !c.IsConnected() {
		return ErrPushNotConnected
	}
	start := time.Now()
	defer func() { metrics.PushPublishDuration.Observe(time.Since(start).Seconds()) }()

	payload := NewAlertPayload(ev, time.Now().UTC())
	priorityTopic := c.PriorityTopic(payload.Data.Priority)

	if err := c.publish(ctx, priorityTopic, qosAtLeastOnce, false, payload); err != nil {
		return err
	}
	if err := c.publish(ctx, c.topic, qosAtLeastOnce, false, payload.Data); err != nil {
		return err
	}

	logging.Ctx(ctx).Info().
		Str("event_id", ev.ID).
		Str("topic", priorityTopic).
		Str("general_topic", c.topic).
		Msg("Published alert to MQTT")
	return nil
}

// PublishHeartbeat publishes the retained liveness message.
func (c *Client) PublishHeartbeat(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrPushNotConnected
	}
	hb := Heartbeat{Timestamp: time.Now().UTC(), Status: "online", ClientID: c.clientID}
	return c.publish(ctx, c.HeartbeatTopic(), qosAtMostOnce, true, hb)
}

func (c *Client) publish(ctx context.Context, topic string, qos byte, retained bool, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", topic, err)
	}

	c.mu.RLock()
	cn := c.conn
	c.mu.RUnlock()

	token := cn.Publish(topic, qos, retained, data)
	timer := time.NewTimer(c.publishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrPushFailed, topic, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: %s: no ack after %s", ErrPushFailed, topic, c.publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPushFailed, topic, err)
	}
	return nil
}
