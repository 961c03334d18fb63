// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package ingest reconciles fetched feed records against the event store.
//
// Each record is classified independently as new, updated or unchanged.
// A failure on one record is logged and counted and the rest of the batch
// still runs. The store's primary key is the final arbiter when two cycles
// race on the same id: the loser sees ErrDuplicateEvent (or a zero-row
// update) and treats it as unchanged, so no event is broadcast twice.
package ingest

import (
	"context"
	"errors"

	"github.com/tomtom215/quakewatch/internal/database"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
)

// Store is the subset of the event store the engine writes through.
type Store interface {
	GetEvent(ctx context.Context, id string) (*models.SeismicEvent, error)
	InsertEvent(ctx context.Context, ev *models.SeismicEvent) error
	UpdateEventRevision(ctx context.Context, ev *models.SeismicEvent) (bool, error)
}

// Cache is the write side of the recency cache.
type Cache interface {
	Add(ctx context.Context, ev *models.SeismicEvent) error
	SetDetail(ctx context.Context, ev *models.SeismicEvent) error
}

// Classification of one record.
type Classification int

const (
	Unchanged Classification = iota
	New
	Updated
	Failed
)

func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	default:
		return "unchanged"
	}
}

// Result summarizes one batch.
type Result struct {
	// Changed holds new and updated events in feed order.
	Changed []models.SeismicEvent

	New       int
	Updated   int
	Unchanged int
	Failed    int
}

// Engine is the dedup/upsert engine.
type Engine struct {
	store Store
	cache Cache
}

// NewEngine creates an engine. cache may be nil.
func NewEngine(store Store, cache Cache) *Engine {
	return &Engine{store: store, cache: cache}
}

// Process reconciles features in order and returns the changed events.
func (e *Engine) Process(ctx context.Context, features []models.RawFeature) Result {
	res := Result{Changed: make([]models.SeismicEvent, 0, len(features))}

	for i := range features {
		if ctx.Err() != nil {
			res.Failed += len(features) - i
			logging.Ctx(ctx).Warn().Err(ctx.Err()).Int("remaining", len(features)-i).
				Msg("Ingest batch cancelled")
			break
		}

		ev, class := e.processOne(ctx, &features[i])
		switch class {
		case New:
			res.New++
			res.Changed = append(res.Changed, *ev)
		case Updated:
			res.Updated++
			res.Changed = append(res.Changed, *ev)
		case Failed:
			res.Failed++
		default:
			res.Unchanged++
		}
	}

	metrics.RecordIngest(res.New, res.Updated, res.Unchanged, res.Failed)
	return res
}

func (e *Engine) processOne(ctx context.Context, f *models.RawFeature) (*models.SeismicEvent, Classification) {
	log := logging.Ctx(ctx)

	candidate, err := f.ToEvent()
	if err != nil {
		log.Warn().Err(err).Msg("Skipping malformed feature")
		return nil, Failed
	}

	existing, err := e.store.GetEvent(ctx, candidate.ID)
	switch {
	case errors.Is(err, database.ErrEventNotFound):
		return e.insert(ctx, candidate)
	case err != nil:
		log.Error().Err(err).Str("event_id", candidate.ID).Msg("Failed to look up event")
		return nil, Failed
	}

	if candidate.FeedUpdatedAt <= existing.FeedUpdatedAt {
		return nil, Unchanged
	}
	return e.update(ctx, existing, candidate)
}

func (e *Engine) insert(ctx context.Context, ev *models.SeismicEvent) (*models.SeismicEvent, Classification) {
	ev.Processed = false
	ev.NotificationSent = false

	if err := e.store.InsertEvent(ctx, ev); err != nil {
		if errors.Is(err, database.ErrDuplicateEvent) {
			logging.Ctx(ctx).Debug().Str("event_id", ev.ID).Msg("Event inserted concurrently, skipping")
			return nil, Unchanged
		}
		logging.Ctx(ctx).Error().Err(err).Str("event_id", ev.ID).Msg("Failed to store new event")
		return nil, Failed
	}

	e.writeThrough(ctx, ev)
	return ev, New
}

func (e *Engine) update(ctx context.Context, existing, revision *models.SeismicEvent) (*models.SeismicEvent, Classification) {
	merged := *existing
	merged.ApplyRevision(revision)

	applied, err := e.store.UpdateEventRevision(ctx, &merged)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("event_id", merged.ID).Msg("Failed to store event revision")
		return nil, Failed
	}
	if !applied {
		// a concurrent writer stored this or a newer revision first
		return nil, Unchanged
	}

	e.writeThrough(ctx, &merged)
	return &merged, Updated
}

// writeThrough refreshes both cache structures. Errors are not fatal.
func (e *Engine) writeThrough(ctx context.Context, ev *models.SeismicEvent) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Add(ctx, ev); err != nil {
		metrics.CacheErrors.WithLabelValues("add").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("event_id", ev.ID).Msg("Recency cache write skipped")
	}
	if err := e.cache.SetDetail(ctx, ev); err != nil {
		metrics.CacheErrors.WithLabelValues("set_detail").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("event_id", ev.ID).Msg("Detail cache write skipped")
	}
}
