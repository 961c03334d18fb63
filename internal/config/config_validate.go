// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Summary feeds are named <magnitude>_<period>, e.g. "4.5_week".
var (
	feedMagnitudes = map[string]bool{"significant": true, "4.5": true, "2.5": true, "1.0": true, "all": true}
	feedPeriods    = map[string]bool{"hour": true, "day": true, "week": true, "month": true}
)

// ValidFeedKind reports whether name is a published summary feed.
func ValidFeedKind(name string) bool {
	magnitude, period, ok := strings.Cut(name, "_")
	return ok && feedMagnitudes[magnitude] && feedPeriods[period]
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateAlert(); err != nil {
		return err
	}
	if err := c.validateMQTT(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("CACHE_CAPACITY must be at least 1, got %d", c.Cache.Capacity)
	}
	if c.Cache.DetailTTL <= 0 {
		return fmt.Errorf("CACHE_DETAIL_TTL must be positive")
	}
	return nil
}

func (c *Config) validateFeed() error {
	u, err := url.Parse(c.Feed.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("USGS_API_URL must be an http(s) URL, got %q", c.Feed.BaseURL)
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("FEED_TIMEOUT must be positive")
	}
	if c.Feed.MaxEventsPerFetch < 0 {
		return fmt.Errorf("MAX_EARTHQUAKES_PER_FETCH must not be negative")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	jobs := map[string]time.Duration{
		"LATEST_INTERVAL":      c.Scheduler.LatestInterval,
		"SIGNIFICANT_INTERVAL": c.Scheduler.SignificantInterval,
		"CATCH_UP_INTERVAL":    c.Scheduler.CatchUpInterval,
	}
	for name, interval := range jobs {
		if interval < time.Second {
			return fmt.Errorf("%s must be at least 1s, got %v", name, interval)
		}
	}
	feeds := []struct{ name, value string }{
		{"LATEST_FEED", c.Scheduler.LatestFeed},
		{"SIGNIFICANT_FEED", c.Scheduler.SignificantFeed},
		{"CATCH_UP_FEED", c.Scheduler.CatchUpFeed},
	}
	for _, f := range feeds {
		if !ValidFeedKind(f.value) {
			return fmt.Errorf("%s must name a summary feed such as all_hour or 4.5_week, got %q", f.name, f.value)
		}
	}
	if c.Scheduler.JobTimeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateAlert() error {
	if c.Alert.MinMagnitude < 0 {
		return fmt.Errorf("MIN_MAGNITUDE_ALERT must not be negative")
	}
	if c.Alert.MaxAttempts < 1 {
		return fmt.Errorf("ALERT_MAX_ATTEMPTS must be at least 1, got %d", c.Alert.MaxAttempts)
	}
	if c.Alert.InitialInterval <= 0 {
		return fmt.Errorf("ALERT_INITIAL_INTERVAL must be positive")
	}
	if c.Alert.Multiplier < 1 {
		return fmt.Errorf("alert.multiplier must be >= 1, got %v", c.Alert.Multiplier)
	}
	return nil
}

func (c *Config) validateMQTT() error {
	if c.MQTT.BrokerURL == "" {
		return fmt.Errorf("MQTT_BROKER_URL is required")
	}
	if c.MQTT.Topic == "" || strings.ContainsAny(c.MQTT.Topic, "+#") {
		return fmt.Errorf("MQTT_TOPIC must be a non-empty topic without wildcards")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_EMBEDDED_SERVER=false")
	}
	if c.NATS.StreamName == "" || c.NATS.DurableName == "" {
		return fmt.Errorf("nats.stream_name and nats.durable_name are required")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
