// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/cache"
	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/database"
	"github.com/tomtom215/quakewatch/internal/models"
)

// TestEventsAfterRestartWithPartialWindow runs the events handler over a
// real store and cache where the cache only saw the events ingested since
// the last restart.
func TestEventsAfterRestartWithPartialWindow(t *testing.T) {
	ctx := context.Background()

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", SkipIndexes: true})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	eventCache, err := cache.Open(cache.Config{Capacity: 10, DetailTTL: time.Minute})
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = eventCache.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		ev := &models.SeismicEvent{
			ID:         fmt.Sprintf("us%d", i),
			Magnitude:  3.0,
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.InsertEvent(ctx, ev); err != nil {
			t.Fatalf("InsertEvent(%s) error = %v", ev.ID, err)
		}
		// Only the two newest arrived after the restart.
		if i >= 4 {
			if err := eventCache.Add(ctx, ev); err != nil {
				t.Fatalf("cache Add(%s) error = %v", ev.ID, err)
			}
		}
	}

	h := NewHandler(Deps{Store: db, Cache: eventCache, Config: &config.Config{}})
	server := NewRouter(h, NewChiMiddleware(&ChiMiddlewareConfig{})).SetupChi()

	tests := []struct {
		name       string
		query      string
		wantIDs    []string
		wantCached bool
	}{
		{"page the window can fill", "limit=2", []string{"us5", "us4"}, true},
		{"page longer than the window", "limit=5", []string{"us5", "us4", "us3", "us2", "us1"}, false},
		{"offset past the window", "limit=2&offset=2", []string{"us3", "us2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?"+tt.query, http.NoBody))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}

			var body struct {
				Data     []models.SeismicEvent `json:"data"`
				Metadata models.Metadata       `json:"metadata"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := make([]string, len(body.Data))
			for i := range body.Data {
				got[i] = body.Data[i].ID
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.wantIDs) {
				t.Errorf("ids = %v, want %v", got, tt.wantIDs)
			}
			if body.Metadata.Cached != tt.wantCached {
				t.Errorf("cached = %v, want %v", body.Metadata.Cached, tt.wantCached)
			}
		})
	}
}
