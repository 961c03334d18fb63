// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
)

// FindEvents returns events matching filter, newest first by occurred_at.
// Ties are broken by id descending, matching the recency window order.
func (db *DB) FindEvents(ctx context.Context, filter models.EventFilter) ([]models.SeismicEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	filter.Normalize()
	where, args := buildEventWhere(&filter)

	query := `SELECT ` + eventColumns + ` FROM seismic_events` + where +
		` ORDER BY occurred_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordDBQuery("find_events", time.Since(start), err)
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer closeQuietly(rows)

	events := make([]models.SeismicEvent, 0, filter.Limit)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *ev)
	}
	err = rows.Err()
	metrics.RecordDBQuery("find_events", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

func buildEventWhere(f *models.EventFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.MinMagnitude != nil {
		clauses = append(clauses, "magnitude >= ?")
		args = append(args, *f.MinMagnitude)
	}
	if f.MaxMagnitude != nil {
		clauses = append(clauses, "magnitude <= ?")
		args = append(args, *f.MaxMagnitude)
	}
	if f.Location != "" {
		clauses = append(clauses, "contains(lower(place), lower(?))")
		args = append(args, f.Location)
	}
	if f.StartDate != nil {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, f.StartDate.UTC())
	}
	if f.EndDate != nil {
		clauses = append(clauses, "occurred_at <= ?")
		args = append(args, f.EndDate.UTC())
	}
	if f.Processed != nil {
		clauses = append(clauses, "processed = ?")
		args = append(args, *f.Processed)
	}
	if f.NotificationSent != nil {
		clauses = append(clauses, "notification_sent = ?")
		args = append(args, *f.NotificationSent)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// EventCounts holds aggregate counts for the stats endpoint.
type EventCounts struct {
	Total       int64
	Since       int64
	Significant int64
}

// CountEvents returns the total count, the count that occurred at or after
// since, and the count with magnitude at or above minMagnitude, in one scan.
func (db *DB) CountEvents(ctx context.Context, since time.Time, minMagnitude float64) (EventCounts, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var c EventCounts
	start := time.Now()
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE occurred_at >= ?),
			count(*) FILTER (WHERE magnitude >= ?)
		FROM seismic_events`,
		since.UTC(), minMagnitude,
	).Scan(&c.Total, &c.Since, &c.Significant)
	metrics.RecordDBQuery("count_events", time.Since(start), err)
	if err != nil {
		return EventCounts{}, fmt.Errorf("failed to count events: %w", err)
	}
	return c, nil
}
