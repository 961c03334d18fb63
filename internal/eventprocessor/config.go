// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/tomtom215/quakewatch/internal/config"
)

// Subject layout for alert jobs.
const (
	SubjectPrefix = "quakewatch.alerts"
	TopicSend     = SubjectPrefix + ".send"
)

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// StreamConfig configures the JetStream stream holding alert jobs.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns the alert stream defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            "QUAKEWATCH_ALERTS",
		Subjects:        []string{SubjectPrefix + ".>"},
		MaxAge:          24 * time.Hour,
		MaxBytes:        256 << 20,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// PublisherConfig configures the watermill-nats publisher.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool // nolint:revive // ID is correct per Go conventions
}

// DefaultPublisherConfig returns publisher defaults for url.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 << 20,
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig configures the durable JetStream subscriber.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
	StreamName       string
}

// DefaultSubscriberConfig returns subscriber defaults for url.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      "alert-worker",
		QueueGroup:       "alert-workers",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    256,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// RouterConfig holds the retry policy of the job router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers when closing.
	CloseTimeout time.Duration

	// MaxAttempts is the total number of handler attempts per message,
	// the first delivery included.
	MaxAttempts int

	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	// PoisonTopic receives abandoned messages when non-empty.
	PoisonTopic string
}

// DefaultRouterConfig returns three attempts with 1s, 2s backoff.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:    30 * time.Second,
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
	}
}

// Validate checks the retry policy.
func (c *RouterConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.InitialInterval < 0 || c.MaxInterval < 0 {
		return fmt.Errorf("%w: retry intervals must not be negative", ErrInvalidConfig)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("%w: multiplier must be >= 1, got %v", ErrInvalidConfig, c.Multiplier)
	}
	return nil
}

// Settings bundles every eventprocessor config derived from the
// application config.
type Settings struct {
	Server     ServerConfig
	Stream     StreamConfig
	Publisher  PublisherConfig
	Subscriber SubscriberConfig
	Router     RouterConfig
}

// SettingsFromConfig maps the application config onto eventprocessor settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	stream := DefaultStreamConfig()
	if cfg.NATS.StreamName != "" {
		stream.Name = cfg.NATS.StreamName
	}

	sub := DefaultSubscriberConfig(cfg.NATS.URL)
	sub.StreamName = stream.Name
	if cfg.NATS.DurableName != "" {
		sub.DurableName = cfg.NATS.DurableName
	}
	if cfg.NATS.AckWait > 0 {
		sub.AckWaitTimeout = cfg.NATS.AckWait
	}
	if cfg.NATS.CloseTimeout > 0 {
		sub.CloseTimeout = cfg.NATS.CloseTimeout
	}

	router := DefaultRouterConfig()
	router.MaxAttempts = cfg.Alert.MaxAttempts
	router.InitialInterval = cfg.Alert.InitialInterval
	router.MaxInterval = cfg.Alert.MaxInterval
	router.Multiplier = cfg.Alert.Multiplier
	router.PoisonTopic = cfg.Alert.PoisonTopic
	if cfg.NATS.CloseTimeout > 0 {
		router.CloseTimeout = cfg.NATS.CloseTimeout
	}

	return Settings{
		Server: ServerConfig{
			Host:              cfg.NATS.Host,
			Port:              cfg.NATS.Port,
			StoreDir:          cfg.NATS.StoreDir,
			JetStreamMaxMem:   cfg.NATS.MaxMemory,
			JetStreamMaxStore: cfg.NATS.MaxStore,
		},
		Stream:     stream,
		Publisher:  DefaultPublisherConfig(cfg.NATS.URL),
		Subscriber: sub,
		Router:     router,
	}
}
