// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/quakewatch/internal/models"
)

// windowStore is satisfied by *database.DB.
type windowStore interface {
	FindEvents(ctx context.Context, filter models.EventFilter) ([]models.SeismicEvent, error)
}

// windowCache is satisfied by *cache.BadgerCache.
type windowCache interface {
	Add(ctx context.Context, ev *models.SeismicEvent) error
	Len() int
	Capacity() int
}

// warmRecencyWindow fills an empty recency window with the newest stored
// events and returns how many were loaded. A window that already holds
// events, such as one recovered from disk, is left alone.
func warmRecencyWindow(ctx context.Context, store windowStore, c windowCache) (int, error) {
	if c.Len() > 0 {
		return 0, nil
	}

	events, err := store.FindEvents(ctx, models.EventFilter{Limit: c.Capacity()})
	if err != nil {
		return 0, fmt.Errorf("failed to load recency window: %w", err)
	}
	for i := len(events) - 1; i >= 0; i-- {
		if err := c.Add(ctx, &events[i]); err != nil {
			return len(events) - 1 - i, fmt.Errorf("failed to warm recency window: %w", err)
		}
	}
	return len(events), nil
}
