// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/database"
	"github.com/tomtom215/quakewatch/internal/models"
)

// memStore mimics the DuckDB store's conflict semantics.
type memStore struct {
	mu        sync.Mutex
	events    map[string]models.SeismicEvent
	failWrite map[string]bool
	inserts   int
}

func newMemStore() *memStore {
	return &memStore{events: map[string]models.SeismicEvent{}, failWrite: map[string]bool{}}
}

func (s *memStore) GetEvent(_ context.Context, id string) (*models.SeismicEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrEventNotFound, id)
	}
	return &ev, nil
}

func (s *memStore) InsertEvent(_ context.Context, ev *models.SeismicEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite[ev.ID] {
		return fmt.Errorf("%w: insert %s: disk full", database.ErrStoreWrite, ev.ID)
	}
	if _, ok := s.events[ev.ID]; ok {
		return fmt.Errorf("%w: %s", database.ErrDuplicateEvent, ev.ID)
	}
	s.inserts++
	s.events[ev.ID] = *ev
	return nil
}

func (s *memStore) UpdateEventRevision(_ context.Context, ev *models.SeismicEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite[ev.ID] {
		return false, fmt.Errorf("%w: update %s", database.ErrStoreWrite, ev.ID)
	}
	cur, ok := s.events[ev.ID]
	if !ok || cur.FeedUpdatedAt >= ev.FeedUpdatedAt {
		return false, nil
	}
	cur.ApplyRevision(ev)
	s.events[ev.ID] = cur
	return true, nil
}

type memCache struct {
	mu      sync.Mutex
	adds    []string
	details map[string]models.SeismicEvent
	fail    bool
}

func newMemCache() *memCache {
	return &memCache{details: map[string]models.SeismicEvent{}}
}

func (c *memCache) Add(_ context.Context, ev *models.SeismicEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache unavailable")
	}
	c.adds = append(c.adds, ev.ID)
	return nil
}

func (c *memCache) SetDetail(_ context.Context, ev *models.SeismicEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache unavailable")
	}
	c.details[ev.ID] = *ev
	return nil
}

func feature(id string, mag float64, updated int64) models.RawFeature {
	m := mag
	return models.RawFeature{
		ID: id,
		Properties: models.FeatureProperties{
			Mag:     &m,
			Place:   "20km N of X",
			Time:    1700000000000,
			Updated: updated,
			URL:     "https://example.test/" + id,
		},
		Geometry: models.FeatureGeometry{Type: "Point", Coordinates: []float64{-122.1, 37.4, 10.2}},
	}
}

func TestProcessWorkedExample(t *testing.T) {
	store, cache := newMemStore(), newMemCache()
	engine := NewEngine(store, cache)
	ctx := context.Background()
	batch := []models.RawFeature{feature("us1000abcd", 5.8, 1700000000000)}

	first := engine.Process(ctx, batch)
	if first.New != 1 || len(first.Changed) != 1 {
		t.Fatalf("first ingestion = %+v, want one new event", first)
	}
	ev := first.Changed[0]
	if ev.Magnitude != 5.8 || ev.Depth != 10.2 || ev.Location.Latitude != 37.4 || ev.Location.Longitude != -122.1 {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.NotificationSent || ev.Processed {
		t.Error("new events start with both flags false")
	}
	if !ev.OccurredAt.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("OccurredAt = %v", ev.OccurredAt)
	}
	if _, ok := cache.details["us1000abcd"]; !ok || len(cache.adds) != 1 {
		t.Error("new event should be written through to both cache structures")
	}

	second := engine.Process(ctx, batch)
	if second.Unchanged != 1 || len(second.Changed) != 0 {
		t.Errorf("second ingestion = %+v, want no-op", second)
	}
	if store.inserts != 1 || len(cache.adds) != 1 {
		t.Errorf("inserts=%d cacheAdds=%d, want 1 and 1", store.inserts, len(cache.adds))
	}
}

func TestProcessUpdateDetection(t *testing.T) {
	store, cache := newMemStore(), newMemCache()
	engine := NewEngine(store, cache)
	ctx := context.Background()

	engine.Process(ctx, []models.RawFeature{feature("ev1", 4.1, 100)})

	// the alert worker delivered in between
	stored := store.events["ev1"]
	stored.NotificationSent = true
	store.events["ev1"] = stored

	tests := []struct {
		name    string
		updated int64
		mag     float64
		want    Classification
	}{
		{"equal revision", 100, 9.0, Unchanged},
		{"older revision", 50, 9.0, Unchanged},
		{"newer revision", 200, 4.6, Updated},
		{"same newer again", 200, 4.6, Unchanged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := engine.Process(ctx, []models.RawFeature{feature("ev1", tt.mag, tt.updated)})
			got := Unchanged
			if res.Updated == 1 {
				got = Updated
			}
			if got != tt.want {
				t.Errorf("classification = %v, want %v", got, tt.want)
			}
		})
	}

	ev := store.events["ev1"]
	if ev.Magnitude != 4.6 || ev.FeedUpdatedAt != 200 {
		t.Errorf("revision not applied: %+v", ev)
	}
	if !ev.NotificationSent {
		t.Error("update must not reset notificationSent")
	}
	if !cache.details["ev1"].NotificationSent {
		t.Error("refreshed detail entry should carry the stored flag")
	}
	if len(cache.adds) != 2 {
		t.Errorf("cache adds = %d, want 2 (insert + one update)", len(cache.adds))
	}
}

func TestProcessPartialFailure(t *testing.T) {
	store, cache := newMemStore(), newMemCache()
	store.failWrite["bad"] = true
	engine := NewEngine(store, cache)

	malformed := models.RawFeature{ID: "short", Geometry: models.FeatureGeometry{Coordinates: []float64{1}}}
	res := engine.Process(context.Background(), []models.RawFeature{
		feature("a", 3.0, 1),
		feature("bad", 5.0, 1),
		malformed,
		feature("b", 6.0, 1),
	})

	if res.New != 2 || res.Failed != 2 {
		t.Errorf("result = %+v, want 2 new and 2 failed", res)
	}
	if len(res.Changed) != 2 || res.Changed[0].ID != "a" || res.Changed[1].ID != "b" {
		t.Errorf("changed = %v, want [a b] in feed order", res.Changed)
	}
}

func TestProcessCacheFailureIsNotFatal(t *testing.T) {
	store, cache := newMemStore(), newMemCache()
	cache.fail = true

	res := NewEngine(store, cache).Process(context.Background(), []models.RawFeature{feature("c1", 4.0, 1)})
	if res.New != 1 {
		t.Errorf("result = %+v, want new despite cache failure", res)
	}
	if _, ok := store.events["c1"]; !ok {
		t.Error("event should be stored")
	}
}

func TestProcessNilCache(t *testing.T) {
	res := NewEngine(newMemStore(), nil).Process(context.Background(), []models.RawFeature{feature("n1", 1.0, 1)})
	if res.New != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestProcessCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewEngine(newMemStore(), nil).Process(ctx, []models.RawFeature{feature("x", 1, 1), feature("y", 1, 1)})
	if res.Failed != 2 || len(res.Changed) != 0 {
		t.Errorf("result = %+v, want all failed", res)
	}
}

func TestConcurrentIngestSameID(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, newMemCache())
	batch := []models.RawFeature{feature("race", 5.0, 1)}

	const cycles = 8
	results := make([]Result, cycles)
	var wg sync.WaitGroup
	for i := 0; i < cycles; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.Process(context.Background(), batch)
		}(i)
	}
	wg.Wait()

	broadcasts := 0
	for _, r := range results {
		broadcasts += len(r.Changed)
	}
	if broadcasts != 1 {
		t.Errorf("changed events across cycles = %d, want 1", broadcasts)
	}
	if store.inserts != 1 {
		t.Errorf("inserts = %d, want 1", store.inserts)
	}
}

func TestConcurrentIngestSameIDDuckDB(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", SkipIndexes: true})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer db.Close()

	engine := NewEngine(db, newMemCache())
	batch := []models.RawFeature{feature("us-race", 6.0, 1)}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		broadcasts int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := engine.Process(context.Background(), batch)
			mu.Lock()
			broadcasts += len(res.Changed)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if broadcasts > 1 {
		t.Errorf("broadcasts = %d, want at most 1", broadcasts)
	}
	counts, err := db.CountEvents(context.Background(), time.Time{}, 0)
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if counts.Total != 1 {
		t.Errorf("stored rows = %d, want 1", counts.Total)
	}
}

func TestClassificationString(t *testing.T) {
	for c, want := range map[Classification]string{New: "new", Updated: "updated", Unchanged: "unchanged", Failed: "failed"} {
		if c.String() != want {
			t.Errorf("%d.String() = %q, want %q", c, c.String(), want)
		}
	}
}
