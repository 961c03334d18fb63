// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package metrics holds the Prometheus collectors for Quakewatch. All
// collectors are registered on the default registry via promauto and are
// served by promhttp on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// Feed Metrics
	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Duration of upstream feed requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"feed"},
	)

	FeedFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetch_errors_total",
			Help: "Total number of failed feed requests",
		},
		[]string{"feed"},
	)

	FeedFeaturesReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_features_returned_total",
			Help: "Total number of features returned by the feed",
		},
		[]string{"feed"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Ingestion Metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_ingested_total",
			Help: "Feed records processed by classification (new, updated, unchanged, failed)",
		},
		[]string{"result"},
	)

	// Recency Cache Metrics
	RecencyCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recency_cache_entries",
			Help: "Current number of events in the recency window",
		},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Cache operations that failed and were skipped",
		},
		[]string{"operation"},
	)

	CacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_reads_total",
			Help: "Reads answered by the cache (hit) or handed to the store (miss)",
		},
		[]string{"kind", "result"},
	)

	// Alert Metrics
	AlertsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_enqueued_total",
			Help: "Alert jobs placed on the durable queue",
		},
	)

	AlertsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_published_total",
			Help: "Alerts successfully published to the push channel by priority",
		},
		[]string{"priority"},
	)

	AlertAttemptsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_attempts_failed_total",
			Help: "Individual alert delivery attempts that failed",
		},
	)

	AlertsAbandoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_abandoned_total",
			Help: "Alert jobs abandoned after exhausting delivery attempts",
		},
	)

	AlertsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_skipped_total",
			Help: "Alert jobs acknowledged without publishing",
		},
		[]string{"reason"},
	)

	// Push Channel Metrics
	PushConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "push_channel_connected",
			Help: "Whether the MQTT push channel is connected (1) or not (0)",
		},
	)

	PushPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "push_publish_duration_seconds",
			Help:    "Time to receive a publish acknowledgement from the broker",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Broadcast Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	BroadcastsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcasts_sent_total",
			Help: "Messages handed to the broadcast hub",
		},
		[]string{"type"},
	)

	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcasts_dropped_total",
			Help: "Broadcast messages dropped because a buffer was full",
		},
	)

	// Scheduler Metrics
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Scheduled job executions by result",
		},
		[]string{"job", "result"},
	)

	SchedulerSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_skipped_total",
			Help: "Ticks skipped because the previous run was still in progress",
		},
		[]string{"job"},
	)

	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordDBQuery observes a query duration and counts the failure, if any.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordFeedFetch records one feed request.
func RecordFeedFetch(feed string, duration time.Duration, features int, err error) {
	FeedFetchDuration.WithLabelValues(feed).Observe(duration.Seconds())
	if err != nil {
		FeedFetchErrors.WithLabelValues(feed).Inc()
		return
	}
	FeedFeaturesReturned.WithLabelValues(feed).Add(float64(features))
}

// RecordIngest adds the counts of one processed batch.
func RecordIngest(newCount, updated, unchanged, failed int) {
	EventsIngested.WithLabelValues("new").Add(float64(newCount))
	EventsIngested.WithLabelValues("updated").Add(float64(updated))
	EventsIngested.WithLabelValues("unchanged").Add(float64(unchanged))
	EventsIngested.WithLabelValues("failed").Add(float64(failed))
}

// RecordCacheRead records a cache hit or miss for a read kind ("latest", "detail").
func RecordCacheRead(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheReads.WithLabelValues(kind, result).Inc()
}

// SetPushConnected mirrors the push channel connection state.
func SetPushConnected(connected bool) {
	if connected {
		PushConnected.Set(1)
		return
	}
	PushConnected.Set(0)
}
