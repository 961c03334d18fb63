// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package push

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/quakewatch/internal/logging"
)

// HeartbeatService publishes the heartbeat on an interval. It implements
// suture.Service and stops cleanly when its context is cancelled.
type HeartbeatService struct {
	client   *Client
	interval time.Duration
}

// NewHeartbeatService creates the service. interval defaults to 30s.
func NewHeartbeatService(client *Client, interval time.Duration) *HeartbeatService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HeartbeatService{client: client, interval: interval}
}

// Serve runs until ctx is done.
func (h *HeartbeatService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *HeartbeatService) beat(ctx context.Context) {
	err := h.client.PublishHeartbeat(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrPushNotConnected):
		logging.Debug().Msg("Skipping heartbeat, MQTT not connected")
	default:
		logging.Warn().Err(err).Msg("Failed to publish heartbeat")
	}
}

// String names the service in supervisor logs.
func (h *HeartbeatService) String() string {
	return "mqtt-heartbeat"
}
