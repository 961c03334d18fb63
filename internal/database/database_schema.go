// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext bounds DDL statements.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		// feed_updated_at is the feed's revision timestamp in epoch millis.
		// created_at/updated_at are storage bookkeeping.
		`CREATE TABLE IF NOT EXISTS seismic_events (
			id VARCHAR PRIMARY KEY,
			magnitude DOUBLE NOT NULL,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			place VARCHAR NOT NULL DEFAULT '',
			depth DOUBLE NOT NULL DEFAULT 0,
			occurred_at TIMESTAMP NOT NULL,
			feed_updated_at BIGINT NOT NULL,
			source_url VARCHAR NOT NULL DEFAULT '',
			alert_level VARCHAR,
			tsunami BOOLEAN NOT NULL DEFAULT FALSE,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			notification_sent BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_seismic_events_occurred_at ON seismic_events(occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_seismic_events_magnitude ON seismic_events(magnitude)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}
