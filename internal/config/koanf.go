// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/quakewatch/config.yaml",
	"/etc/quakewatch/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// sliceConfigPaths are keys that may arrive as comma-separated env strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"websocket.allowed_origins",
}

// defaultConfig returns the configuration used when nothing overrides it.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                6000,
			Timeout:             30 * time.Second,
			CORSOrigins:         []string{"http://localhost:3000"},
			RateLimitPerMinute:  300,
			ManualFetchInterval: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/quakewatch.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = DuckDB default
		},
		Cache: CacheConfig{
			Dir:        "/data/cache",
			Capacity:   1000,
			DetailTTL:  24 * time.Hour,
			GCInterval: 10 * time.Minute,
		},
		Feed: FeedConfig{
			BaseURL:           "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary",
			Timeout:           10 * time.Second,
			UserAgent:         "quakewatch/1.0",
			MaxEventsPerFetch: 0,
			BreakerFailures:   5,
			BreakerTimeout:    2 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Enabled:             true,
			LatestFeed:          "all_hour",
			LatestInterval:      30 * time.Second,
			SignificantFeed:     "significant_month",
			SignificantInterval: 5 * time.Minute,
			CatchUpFeed:         "all_day",
			CatchUpInterval:     15 * time.Minute,
			JobTimeout:          60 * time.Second,
		},
		Alert: AlertConfig{
			MinMagnitude:    4.0,
			MaxAttempts:     3,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
			Multiplier:      2,
			PoisonTopic:     "",
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           4222,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      256 << 20, // 256MB
			MaxStore:       1 << 30,   // 1GB
			StreamName:     "QUAKEWATCH_ALERTS",
			DurableName:    "alert-worker",
			AckWait:        30 * time.Second,
			CloseTimeout:   30 * time.Second,
		},
		MQTT: MQTTConfig{
			BrokerURL:         "tcp://localhost:1883",
			Topic:             "earthquakes/alerts",
			PriorityPrefix:    "earthquake",
			ClientID:          "", // generated when empty
			ConnectTimeout:    4 * time.Second,
			PublishTimeout:    5 * time.Second,
			ReconnectInterval: time.Second,
			HeartbeatInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads the layered configuration.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processSliceFields splits comma-separated env values into string slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to config keys.
// Short legacy names such as PORT, CORS_ORIGIN and USGS_API_URL are
// accepted as-is.
var envMappings = map[string]string{
	// Server
	"host":                  "server.host",
	"port":                  "server.port",
	"server_timeout":        "server.timeout",
	"cors_origin":           "server.cors_origins",
	"cors_origins":          "server.cors_origins",
	"rate_limit_per_minute": "server.rate_limit_per_minute",
	"manual_fetch_interval": "server.manual_fetch_interval",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Cache
	"cache_dir":         "cache.dir",
	"cache_capacity":    "cache.capacity",
	"cache_detail_ttl":  "cache.detail_ttl",
	"cache_gc_interval": "cache.gc_interval",

	// Feed
	"usgs_api_url":              "feed.base_url",
	"feed_timeout":              "feed.timeout",
	"feed_user_agent":           "feed.user_agent",
	"max_earthquakes_per_fetch": "feed.max_events_per_fetch",
	"feed_breaker_failures":     "feed.breaker_failures",
	"feed_breaker_timeout":      "feed.breaker_timeout",

	// Scheduler
	"scheduler_enabled":    "scheduler.enabled",
	"latest_feed":          "scheduler.latest_feed",
	"significant_feed":     "scheduler.significant_feed",
	"catch_up_feed":        "scheduler.catch_up_feed",
	"latest_interval":      "scheduler.latest_interval",
	"significant_interval": "scheduler.significant_interval",
	"catch_up_interval":    "scheduler.catch_up_interval",
	"job_timeout":          "scheduler.job_timeout",

	// Alerts
	"min_magnitude_alert":    "alert.min_magnitude",
	"alert_max_attempts":     "alert.max_attempts",
	"alert_initial_interval": "alert.initial_interval",
	"alert_max_interval":     "alert.max_interval",
	"alert_poison_topic":     "alert.poison_topic",

	// NATS
	"nats_url":             "nats.url",
	"nats_embedded_server": "nats.embedded_server",
	"nats_store_dir":       "nats.store_dir",
	"nats_max_memory":      "nats.max_memory",
	"nats_max_store":       "nats.max_store",
	"nats_durable_name":    "nats.durable_name",
	"nats_ack_wait":        "nats.ack_wait",

	// MQTT
	"mqtt_broker_url":         "mqtt.broker_url",
	"mqtt_topic":              "mqtt.topic",
	"mqtt_priority_prefix":    "mqtt.priority_prefix",
	"mqtt_client_id":          "mqtt.client_id",
	"mqtt_username":           "mqtt.username",
	"mqtt_password":           "mqtt.password",
	"mqtt_connect_timeout":    "mqtt.connect_timeout",
	"mqtt_publish_timeout":    "mqtt.publish_timeout",
	"mqtt_heartbeat_interval": "mqtt.heartbeat_interval",

	// WebSocket
	"ws_allowed_origins": "websocket.allowed_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to a config key.
// Unmapped variables return "" and are ignored, which keeps unrelated
// environment out of the config.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
