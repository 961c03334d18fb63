// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package alert evaluates alert eligibility and fans changed events out to
// the broadcast channel and the durable alert queue. The queue consumer
// (Worker) publishes to the push channel and records delivery.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/models"
)

// Broadcast addressing for changed events.
const (
	BroadcastTopic = "updates"
	BroadcastType  = "new-event"
)

// ErrAlreadyNotified is returned by Realert for delivered events.
var ErrAlreadyNotified = errors.New("alert already sent")

// Broadcaster delivers a message to subscribers of a topic. It returns the
// number of subscribers the message was queued for.
type Broadcaster interface {
	Publish(topic, msgType string, data interface{}) int
}

// EventReader loads stored events.
type EventReader interface {
	GetEvent(ctx context.Context, id string) (*models.SeismicEvent, error)
}

// Dispatcher is the alert dispatcher.
type Dispatcher struct {
	minMagnitude float64
	broadcaster  Broadcaster
	queue        Queue
	store        EventReader
}

// NewDispatcher creates a dispatcher. broadcaster may be nil.
func NewDispatcher(minMagnitude float64, broadcaster Broadcaster, queue Queue, store EventReader) *Dispatcher {
	return &Dispatcher{
		minMagnitude: minMagnitude,
		broadcaster:  broadcaster,
		queue:        queue,
		store:        store,
	}
}

// MinMagnitude returns the alert threshold.
func (d *Dispatcher) MinMagnitude() float64 {
	return d.minMagnitude
}

// Evaluate reports whether ev warrants a push alert.
func (d *Dispatcher) Evaluate(ev *models.SeismicEvent) bool {
	return ev.Magnitude >= d.minMagnitude
}

// Dispatch broadcasts ev and, when eligible, enqueues an alert job. Only
// a failed enqueue is returned; broadcast problems are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *models.SeismicEvent) error {
	log := logging.Ctx(ctx)

	if d.broadcaster != nil {
		if n := d.broadcaster.Publish(BroadcastTopic, BroadcastType, ev); n == 0 {
			log.Debug().Str("event_id", ev.ID).Msg("No subscribers for broadcast")
		}
	}

	if !d.Evaluate(ev) {
		return nil
	}

	if err := d.queue.Enqueue(ctx, &Job{Event: *ev, EnqueuedAt: time.Now().UTC()}); err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to enqueue alert")
		return err
	}
	log.Info().
		Str("event_id", ev.ID).
		Float64("magnitude", ev.Magnitude).
		Str("priority", string(PriorityFor(ev.Magnitude))).
		Msg("Alert enqueued")
	return nil
}

// Realert enqueues a fresh job for a stored event that has not been
// delivered, regardless of the magnitude threshold.
func (d *Dispatcher) Realert(ctx context.Context, id string) error {
	ev, err := d.store.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if ev.NotificationSent {
		return fmt.Errorf("%w: %s", ErrAlreadyNotified, id)
	}
	if err := d.queue.Enqueue(ctx, &Job{Event: *ev, EnqueuedAt: time.Now().UTC(), Manual: true}); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("event_id", id).Msg("Manual re-alert enqueued")
	return nil
}
