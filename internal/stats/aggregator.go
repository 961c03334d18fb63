// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package stats assembles pipeline statistics and the health report from
// the running components. Every call is a read; nothing here mutates state.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/quakewatch/internal/alert"
	"github.com/tomtom215/quakewatch/internal/database"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/models"
	"github.com/tomtom215/quakewatch/internal/sync"
)

// statsWindow is the look-back for Last24h.
const statsWindow = 24 * time.Hour

// Store is the event store as seen by the aggregator.
type Store interface {
	Ping(ctx context.Context) error
	CountEvents(ctx context.Context, since time.Time, minMagnitude float64) (database.EventCounts, error)
}

// Cache reports recency cache readiness.
type Cache interface {
	Ready() bool
}

// Push reports push channel connectivity.
type Push interface {
	IsConnected() bool
}

// Subscribers counts live broadcast clients.
type Subscribers interface {
	ConnectedCount() int
}

// FetchStatus exposes fetch cycle state.
type FetchStatus interface {
	LastFetchTime() *time.Time
	FeedHealth() sync.FeedHealth
}

// AbandonStatus exposes abandoned alert deliveries.
type AbandonStatus interface {
	Status() alert.AbandonStatus
}

// Sources wires an Aggregator. Any source may be nil, in which case it
// is reported as absent.
type Sources struct {
	Store        Store
	Cache        Cache
	Push         Push
	Subscribers  Subscribers
	Fetch        FetchStatus
	Abandoned    AbandonStatus
	MinMagnitude float64
}

// Aggregator combines component state into Stats and HealthReport.
type Aggregator struct {
	src Sources
	now func() time.Time
}

// NewAggregator creates an aggregator over src.
func NewAggregator(src Sources) *Aggregator {
	return &Aggregator{src: src, now: time.Now}
}

// Stats returns current counters. Only the store query can fail.
func (a *Aggregator) Stats(ctx context.Context) (*models.Stats, error) {
	out := &models.Stats{
		FeedHealthy: true,
	}

	if a.src.Store != nil {
		counts, err := a.src.Store.CountEvents(ctx, a.now().Add(-statsWindow), a.src.MinMagnitude)
		if err != nil {
			return nil, fmt.Errorf("count events: %w", err)
		}
		out.Total = counts.Total
		out.Last24h = counts.Since
		out.SignificantCount = counts.Significant
	}
	if a.src.Fetch != nil {
		out.LastFetchTime = a.src.Fetch.LastFetchTime()
		out.FeedHealthy = a.src.Fetch.FeedHealth().Healthy
	}
	if a.src.Subscribers != nil {
		out.ConnectedSubscribers = a.src.Subscribers.ConnectedCount()
	}
	if a.src.Push != nil {
		out.PushChannelConnected = a.src.Push.IsConnected()
	}
	if a.src.Abandoned != nil {
		out.AbandonedAlerts = a.src.Abandoned.Status().Count
	}
	return out, nil
}

// Health checks every dependency. Status is healthy only when the store
// pings, the cache is ready and the push channel is connected. Feed and
// alerting degradation show up in details without changing status.
func (a *Aggregator) Health(ctx context.Context) *models.HealthReport {
	report := &models.HealthReport{
		Status:    models.StatusHealthy,
		Details:   make(map[string]models.ComponentHealth, 5),
		CheckedAt: a.now().UTC(),
	}

	fail := func(component, msg string) {
		report.Status = models.StatusUnhealthy
		report.Details[component] = models.ComponentHealth{Status: models.StatusUnhealthy, Message: msg}
	}

	switch {
	case a.src.Store == nil:
		fail("database", "not configured")
	default:
		if err := a.src.Store.Ping(ctx); err != nil {
			fail("database", err.Error())
		} else {
			report.Details["database"] = models.ComponentHealth{Status: models.StatusHealthy}
		}
	}

	if a.src.Cache != nil && a.src.Cache.Ready() {
		report.Details["cache"] = models.ComponentHealth{Status: models.StatusHealthy}
	} else {
		fail("cache", "not ready")
	}

	if a.src.Push != nil && a.src.Push.IsConnected() {
		report.Details["push"] = models.ComponentHealth{Status: models.StatusHealthy}
	} else {
		fail("push", "not connected")
	}

	report.Details["feed"] = a.feedHealth()
	report.Details["alerting"] = a.alertingHealth()

	if report.Status != models.StatusHealthy {
		logging.Ctx(ctx).Warn().Interface("details", report.Details).Msg("Health check failed")
	}
	return report
}

func (a *Aggregator) feedHealth() models.ComponentHealth {
	if a.src.Fetch == nil {
		return models.ComponentHealth{Status: models.StatusOK}
	}
	h := a.src.Fetch.FeedHealth()
	if h.Healthy {
		return models.ComponentHealth{Status: models.StatusOK}
	}
	return models.ComponentHealth{Status: models.StatusDegraded, Message: h.LastError}
}

func (a *Aggregator) alertingHealth() models.ComponentHealth {
	if a.src.Abandoned == nil {
		return models.ComponentHealth{Status: models.StatusOK}
	}
	st := a.src.Abandoned.Status()
	if st.Count == 0 {
		return models.ComponentHealth{Status: models.StatusOK}
	}
	return models.ComponentHealth{
		Status:  models.StatusDegraded,
		Message: fmt.Sprintf("%d abandoned, last %s: %s", st.Count, st.LastEventID, st.LastError),
	}
}
