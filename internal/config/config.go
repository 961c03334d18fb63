// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package config loads Quakewatch configuration.
//
// Values are layered, lowest priority first:
//
//  1. Built-in defaults (defaultConfig)
//  2. An optional YAML file (config.yaml, /etc/quakewatch/config.yaml, or CONFIG_PATH)
//  3. Environment variables listed in envTransformFunc
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load config")
//	}
//
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Feed      FeedConfig      `koanf:"feed"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Alert     AlertConfig     `koanf:"alert"`
	NATS      NATSConfig      `koanf:"nats"`
	MQTT      MQTTConfig      `koanf:"mqtt"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// CORSOrigins are the allowed origins for browser clients.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitPerMinute is the per-IP request budget. 0 disables limiting.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	// ManualFetchInterval is the minimum spacing between manual fetch
	// triggers across all callers.
	ManualFetchInterval time.Duration `koanf:"manual_fetch_interval"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path to the database file. ":memory:" runs without persistence.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`

	// SkipIndexes disables secondary index creation. Used by tests.
	SkipIndexes bool `koanf:"skip_indexes"`
}

// CacheConfig holds recency window and detail cache settings.
type CacheConfig struct {
	// Dir is the Badger directory. Empty runs Badger in memory.
	Dir string `koanf:"dir"`

	// Capacity is the recency window size.
	Capacity int `koanf:"capacity"`

	// DetailTTL is how long per-event detail entries live.
	DetailTTL time.Duration `koanf:"detail_ttl"`

	// GCInterval controls how often the value log is garbage collected.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// FeedConfig holds upstream feed client settings.
type FeedConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"user_agent"`

	// MaxEventsPerFetch caps how many features of a page go downstream.
	// 0 means no cap.
	MaxEventsPerFetch int `koanf:"max_events_per_fetch"`

	// Circuit breaker settings.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// SchedulerConfig holds the recurring fetch job cadences.
type SchedulerConfig struct {
	Enabled bool `koanf:"enabled"`

	LatestFeed     string        `koanf:"latest_feed"`
	LatestInterval time.Duration `koanf:"latest_interval"`

	SignificantFeed     string        `koanf:"significant_feed"`
	SignificantInterval time.Duration `koanf:"significant_interval"`

	CatchUpFeed     string        `koanf:"catch_up_feed"`
	CatchUpInterval time.Duration `koanf:"catch_up_interval"`

	// JobTimeout bounds a single fetch cycle.
	JobTimeout time.Duration `koanf:"job_timeout"`
}

// AlertConfig holds eligibility and delivery retry settings.
type AlertConfig struct {
	MinMagnitude float64 `koanf:"min_magnitude"`

	// MaxAttempts is the total number of delivery attempts per job.
	MaxAttempts     int           `koanf:"max_attempts"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
	Multiplier      float64       `koanf:"multiplier"`

	// PoisonTopic receives abandoned jobs when non-empty.
	PoisonTopic string `koanf:"poison_topic"`
}

// NATSConfig holds the durable alert queue broker settings.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	StoreDir       string        `koanf:"store_dir"`
	MaxMemory      int64         `koanf:"max_memory"`
	MaxStore       int64         `koanf:"max_store"`
	StreamName     string        `koanf:"stream_name"`
	DurableName    string        `koanf:"durable_name"`
	AckWait        time.Duration `koanf:"ack_wait"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
}

// MQTTConfig holds push channel settings.
type MQTTConfig struct {
	BrokerURL string `koanf:"broker_url"`

	// Topic is the general alert topic. The heartbeat goes to Topic + "/heartbeat".
	Topic string `koanf:"topic"`

	// PriorityPrefix is prepended to "/alert/<priority>".
	PriorityPrefix string `koanf:"priority_prefix"`

	ClientID          string        `koanf:"client_id"`
	Username          string        `koanf:"username"`
	Password          string        `koanf:"password"`
	ConnectTimeout    time.Duration `koanf:"connect_timeout"`
	PublishTimeout    time.Duration `koanf:"publish_timeout"`
	ReconnectInterval time.Duration `koanf:"reconnect_interval"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
}

// WebSocketConfig holds broadcast hub settings.
type WebSocketConfig struct {
	// AllowedOrigins for the upgrade check. Empty allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
