// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
)

// Message metadata keys.
const (
	MetadataEventID       = "event_id"
	MetadataCorrelationID = "correlation_id"
)

// Job is the durable queue payload: the full event plus bookkeeping.
type Job struct {
	Event      models.SeismicEvent `json:"event"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
	Manual     bool                `json:"manual,omitempty"`
}

// DecodeJob parses a job payload.
func DecodeJob(payload []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("decode alert job: %w", err)
	}
	if job.Event.ID == "" {
		return nil, fmt.Errorf("decode alert job: missing event id")
	}
	return &job, nil
}

// Queue is the producer side of the durable alert queue.
type Queue interface {
	Enqueue(ctx context.Context, job *Job) error
}

// MessageQueue publishes jobs as Watermill messages.
type MessageQueue struct {
	publisher message.Publisher
	topic     string
}

// NewMessageQueue creates a queue publishing to topic.
func NewMessageQueue(publisher message.Publisher, topic string) *MessageQueue {
	return &MessageQueue{publisher: publisher, topic: topic}
}

// Enqueue serializes job and publishes it. Each enqueue is a distinct
// message, so a manual re-alert is never collapsed by broker dedup.
func (q *MessageQueue) Enqueue(ctx context.Context, job *Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode alert job: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataEventID, job.Event.ID)
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		msg.Metadata.Set(MetadataCorrelationID, cid)
	}
	msg.SetContext(ctx)

	if err := q.publisher.Publish(q.topic, msg); err != nil {
		return fmt.Errorf("enqueue alert %s: %w", job.Event.ID, err)
	}
	metrics.AlertsEnqueued.Inc()
	return nil
}
