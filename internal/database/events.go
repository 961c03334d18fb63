// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
)

const eventColumns = `id, magnitude, latitude, longitude, place, depth, occurred_at,
	feed_updated_at, source_url, alert_level, tsunami, processed, notification_sent,
	created_at, updated_at`

// InsertEvent stores a first sighting. ErrDuplicateEvent means another
// writer inserted the same id first.
func (db *DB) InsertEvent(ctx context.Context, ev *models.SeismicEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	ev.UpdatedAt = now

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO seismic_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Magnitude, ev.Location.Latitude, ev.Location.Longitude, ev.Location.Place,
		ev.Depth, ev.OccurredAt.UTC(), ev.FeedUpdatedAt, ev.SourceURL, nullString(ev.AlertLevel),
		ev.Tsunami, ev.Processed, ev.NotificationSent, ev.CreatedAt, ev.UpdatedAt,
	)
	metrics.RecordDBQuery("insert_event", time.Since(start), err)
	if err == nil {
		return nil
	}

	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
	}
	// A concurrent insert of the same key can also surface as a
	// transaction conflict. Only call it a duplicate if the row is there.
	if isTransactionConflict(err) {
		if _, getErr := db.GetEvent(ctx, ev.ID); getErr == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
		}
	}
	return fmt.Errorf("%w: insert %s: %w", ErrStoreWrite, ev.ID, err)
}

// GetEvent returns the stored event or ErrEventNotFound.
func (db *DB) GetEvent(ctx context.Context, id string) (*models.SeismicEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM seismic_events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	metrics.RecordDBQuery("get_event", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return ev, nil
}

// UpdateEventRevision overwrites the feed-derived fields of a stored event
// when ev carries a strictly newer feed revision. It reports whether a row
// was changed; false means the stored revision is already the same or
// newer. processed and notification_sent are never touched here.
func (db *DB) UpdateEventRevision(ctx context.Context, ev *models.SeismicEvent) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	ev.UpdatedAt = time.Now().UTC()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE seismic_events SET
			magnitude = ?, latitude = ?, longitude = ?, place = ?, depth = ?,
			occurred_at = ?, feed_updated_at = ?, source_url = ?, alert_level = ?,
			tsunami = ?, updated_at = ?
		WHERE id = ? AND feed_updated_at < ?`,
		ev.Magnitude, ev.Location.Latitude, ev.Location.Longitude, ev.Location.Place, ev.Depth,
		ev.OccurredAt.UTC(), ev.FeedUpdatedAt, ev.SourceURL, nullString(ev.AlertLevel),
		ev.Tsunami, ev.UpdatedAt,
		ev.ID, ev.FeedUpdatedAt,
	)
	metrics.RecordDBQuery("update_event", time.Since(start), err)
	if err != nil {
		if isTransactionConflict(err) {
			// Someone else is writing this row right now. Their write wins.
			return false, nil
		}
		return false, fmt.Errorf("%w: update %s: %w", ErrStoreWrite, ev.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkNotificationSent records that an alert was published for id. The flag
// only ever moves to true. Calling it again is a no-op.
func (db *DB) MarkNotificationSent(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE seismic_events SET notification_sent = TRUE, updated_at = ?
		WHERE id = ? AND notification_sent = FALSE`,
		time.Now().UTC(), id,
	)
	metrics.RecordDBQuery("mark_notification_sent", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: mark notification sent %s: %w", ErrStoreWrite, id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		// Either already true or missing. Only the latter is an error.
		if _, err := db.GetEvent(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.SeismicEvent, error) {
	var (
		ev    models.SeismicEvent
		alert sql.NullString
	)
	err := row.Scan(
		&ev.ID, &ev.Magnitude, &ev.Location.Latitude, &ev.Location.Longitude, &ev.Location.Place,
		&ev.Depth, &ev.OccurredAt, &ev.FeedUpdatedAt, &ev.SourceURL, &alert,
		&ev.Tsunami, &ev.Processed, &ev.NotificationSent, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if alert.Valid {
		level := alert.String
		ev.AlertLevel = &level
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.UpdatedAt = ev.UpdatedAt.UTC()
	return &ev, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
