// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/quakewatch/internal/database"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
)

// Publisher is the push channel.
type Publisher interface {
	PublishAlert(ctx context.Context, ev *models.SeismicEvent) error
}

// WorkerStore is the store access the worker needs.
type WorkerStore interface {
	GetEvent(ctx context.Context, id string) (*models.SeismicEvent, error)
	MarkNotificationSent(ctx context.Context, id string) error
}

// DetailCache is refreshed after delivery.
type DetailCache interface {
	SetDetail(ctx context.Context, ev *models.SeismicEvent) error
}

// Worker consumes alert jobs. One Handle call is one delivery attempt.
type Worker struct {
	store     WorkerStore
	publisher Publisher
	cache     DetailCache

	// mu serializes attempts so two jobs for one id cannot both publish.
	mu sync.Mutex
}

// NewWorker creates a worker. cache may be nil.
func NewWorker(store WorkerStore, publisher Publisher, cache DetailCache) *Worker {
	return &Worker{store: store, publisher: publisher, cache: cache}
}

// Handle is a message.NoPublishHandlerFunc. A returned error fails the
// attempt and leaves retry to the router.
func (w *Worker) Handle(msg *message.Message) error {
	ctx := msg.Context()
	if cid := msg.Metadata.Get(MetadataCorrelationID); cid != "" {
		ctx = logging.ContextWithCorrelationID(ctx, cid)
	}

	job, err := DecodeJob(msg.Payload)
	if err != nil {
		// retrying cannot fix a bad payload
		metrics.AlertsSkipped.WithLabelValues("malformed").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed alert job")
		return nil
	}
	return w.deliver(ctx, job.Event.ID)
}

func (w *Worker) deliver(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	log := logging.Ctx(ctx)

	ev, err := w.store.GetEvent(ctx, id)
	if errors.Is(err, database.ErrEventNotFound) {
		metrics.AlertsSkipped.WithLabelValues("not_found").Inc()
		log.Warn().Str("event_id", id).Msg("Alert job for unknown event")
		return nil
	}
	if err != nil {
		metrics.AlertAttemptsFailed.Inc()
		return fmt.Errorf("load event %s: %w", id, err)
	}
	if ev.NotificationSent {
		metrics.AlertsSkipped.WithLabelValues("already_sent").Inc()
		log.Debug().Str("event_id", id).Msg("Alert already delivered")
		return nil
	}

	if err := w.publisher.PublishAlert(ctx, ev); err != nil {
		metrics.AlertAttemptsFailed.Inc()
		log.Warn().Err(err).Str("event_id", id).Msg("Alert publish attempt failed")
		return fmt.Errorf("publish alert %s: %w", id, err)
	}
	priority := PriorityFor(ev.Magnitude)
	metrics.AlertsPublished.WithLabelValues(string(priority)).Inc()

	if err := w.store.MarkNotificationSent(ctx, id); err != nil {
		metrics.AlertAttemptsFailed.Inc()
		return fmt.Errorf("mark notification sent %s: %w", id, err)
	}
	ev.NotificationSent = true

	if w.cache != nil {
		if err := w.cache.SetDetail(ctx, ev); err != nil {
			metrics.CacheErrors.WithLabelValues("set_detail").Inc()
			log.Warn().Err(err).Str("event_id", id).Msg("Detail cache refresh skipped")
		}
	}

	log.Info().
		Str("event_id", id).
		Float64("magnitude", ev.Magnitude).
		Str("priority", string(priority)).
		Msg("Alert delivered")
	return nil
}
