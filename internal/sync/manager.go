// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/quakewatch/internal/feed"
	"github.com/tomtom215/quakewatch/internal/ingest"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/models"
)

var (
	// ErrRateLimited is returned by TriggerFetch when the manual fetch
	// budget is spent.
	ErrRateLimited = errors.New("manual fetch rate limited")

	// ErrUnknownFeedKind is returned for a feed kind this service does not fetch.
	ErrUnknownFeedKind = errors.New("unknown feed kind")
)

// Processor classifies and stores a batch of features.
type Processor interface {
	Process(ctx context.Context, features []models.RawFeature) ingest.Result
}

// Dispatcher fans a changed event out to the broadcast and alert channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *models.SeismicEvent) error
}

// StatusBroadcaster announces server status to live clients.
type StatusBroadcaster interface {
	BroadcastStatus(connected bool, lastUpdate *time.Time)
}

// FailureRecorder keeps track of events whose alert never reached the
// queue. *alert.Tracker implements it.
type FailureRecorder interface {
	RecordAbandon(eventID string, err error)
}

// ConnectionChecker reports push channel connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

// CycleResult summarizes one fetch cycle.
type CycleResult struct {
	Kind           feed.Kind `json:"kind"`
	CorrelationID  string    `json:"correlation_id"`
	Fetched        int       `json:"fetched"`
	New            int       `json:"new"`
	Updated        int       `json:"updated"`
	Unchanged      int       `json:"unchanged"`
	Failed         int       `json:"failed"`
	Dispatched     int       `json:"dispatched"`
	DispatchErrors int       `json:"dispatch_errors"`
	DurationMS     int64     `json:"duration_ms"`
}

// FeedHealth is the state of the upstream feed as seen by recent cycles.
type FeedHealth struct {
	Healthy     bool       `json:"healthy"`
	LastError   string     `json:"last_error,omitempty"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

// Manager runs fetch cycles: fetch, dedup, dispatch.
type Manager struct {
	fetcher    feed.Fetcher
	processor  Processor
	dispatcher Dispatcher
	status     StatusBroadcaster
	push       ConnectionChecker
	failures   FailureRecorder
	limiter    *rate.Limiter

	mu        sync.RWMutex
	lastFetch *time.Time
	health    FeedHealth
}

// Config wires a Manager. Status, Push and Failures may be nil.
type Config struct {
	Fetcher    feed.Fetcher
	Processor  Processor
	Dispatcher Dispatcher
	Status     StatusBroadcaster
	Push       ConnectionChecker
	Failures   FailureRecorder

	// ManualFetchInterval is the minimum spacing of manual fetches.
	// Zero disables rate limiting.
	ManualFetchInterval time.Duration
}

// NewManager creates a manager. The feed is assumed healthy until a
// cycle says otherwise.
func NewManager(cfg Config) *Manager {
	limit := rate.Inf
	if cfg.ManualFetchInterval > 0 {
		limit = rate.Every(cfg.ManualFetchInterval)
	}
	return &Manager{
		fetcher:    cfg.Fetcher,
		processor:  cfg.Processor,
		dispatcher: cfg.Dispatcher,
		status:     cfg.Status,
		push:       cfg.Push,
		failures:   cfg.Failures,
		limiter:    rate.NewLimiter(limit, 1),
		health:     FeedHealth{Healthy: true},
	}
}

// RunCycle fetches kind, processes every feature in feed order and
// dispatches each changed event. A fetch failure aborts the cycle and
// marks the feed unhealthy. Dispatch failures are counted and recorded,
// not returned: the event is already stored, so a later fetch sees it as
// unchanged and only a manual re-alert delivers it.
func (m *Manager) RunCycle(ctx context.Context, kind feed.Kind) (*CycleResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeedKind, kind)
	}
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	log := logging.Ctx(ctx).With().Str("feed", string(kind)).Logger()
	start := time.Now()

	features, err := m.fetcher.Fetch(ctx, kind)
	if err != nil {
		m.recordFailure(err)
		log.Error().Err(err).Msg("Fetch cycle aborted")
		return nil, err
	}

	res := m.processor.Process(ctx, features)
	result := &CycleResult{
		Kind:          kind,
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		Fetched:       len(features),
		New:           res.New,
		Updated:       res.Updated,
		Unchanged:     res.Unchanged,
		Failed:        res.Failed,
	}

	for i := range res.Changed {
		ev := &res.Changed[i]
		if err := m.dispatcher.Dispatch(ctx, ev); err != nil {
			result.DispatchErrors++
			log.Error().Err(err).
				Str("event_id", ev.ID).
				Str("realert", "POST /api/v1/events/"+ev.ID+"/realert").
				Msg("Alert not enqueued, re-send manually once the queue recovers")
			if m.failures != nil {
				m.failures.RecordAbandon(ev.ID, err)
			}
			continue
		}
		result.Dispatched++
	}

	now := m.recordSuccess()
	if m.status != nil {
		m.status.BroadcastStatus(m.pushConnected(), &now)
	}

	result.DurationMS = time.Since(start).Milliseconds()
	log.Info().
		Int("fetched", result.Fetched).
		Int("new", result.New).
		Int("updated", result.Updated).
		Int("unchanged", result.Unchanged).
		Int("failed", result.Failed).
		Int("dispatch_errors", result.DispatchErrors).
		Int64("duration_ms", result.DurationMS).
		Msg("Fetch cycle completed")
	return result, nil
}

// TriggerFetch runs a cycle on demand, subject to the manual fetch limit.
func (m *Manager) TriggerFetch(ctx context.Context, kind feed.Kind) (*CycleResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeedKind, kind)
	}
	if !m.limiter.Allow() {
		return nil, ErrRateLimited
	}
	logging.Ctx(ctx).Info().Str("feed", string(kind)).Msg("Manual fetch triggered")
	return m.RunCycle(ctx, kind)
}

// CycleFunc adapts RunCycle to a scheduler job body.
func (m *Manager) CycleFunc(kind feed.Kind) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := m.RunCycle(ctx, kind)
		return err
	}
}

// LastFetchTime returns the end of the last successful cycle, or nil.
func (m *Manager) LastFetchTime() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastFetch == nil {
		return nil
	}
	t := *m.lastFetch
	return &t
}

// FeedHealth returns the feed state from the most recent cycle.
func (m *Manager) FeedHealth() FeedHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health
}

func (m *Manager) recordSuccess() time.Time {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFetch = &now
	m.health.Healthy = true
	m.health.LastSuccess = &now
	return now
}

func (m *Manager) recordFailure(err error) {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health.Healthy = false
	m.health.LastError = err.Error()
	m.health.LastErrorAt = &now
}

func (m *Manager) pushConnected() bool {
	return m.push != nil && m.push.IsConnected()
}
