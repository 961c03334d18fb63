// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package main

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/feed"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/models"
	"github.com/tomtom215/quakewatch/internal/scheduler"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type fakeRunner struct {
	kinds []feed.Kind
}

func (f *fakeRunner) CycleFunc(kind feed.Kind) func(ctx context.Context) error {
	f.kinds = append(f.kinds, kind)
	return func(context.Context) error { return nil }
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:             true,
		LatestFeed:          "all_hour",
		LatestInterval:      30 * time.Second,
		SignificantFeed:     "significant_month",
		SignificantInterval: 5 * time.Minute,
		CatchUpFeed:         "all_day",
		CatchUpInterval:     15 * time.Minute,
		JobTimeout:          time.Minute,
	}
}

func TestFetchJobs(t *testing.T) {
	cfg := testSchedulerConfig()
	jobs := fetchJobs(&cfg)

	want := []fetchJob{
		{name: "latest", kind: "all_hour", interval: 30 * time.Second},
		{name: "significant", kind: "significant_month", interval: 5 * time.Minute},
		{name: "catch-up", kind: "all_day", interval: 15 * time.Minute},
	}
	if !reflect.DeepEqual(jobs, want) {
		t.Errorf("fetchJobs() = %+v, want %+v", jobs, want)
	}
}

func TestInitScheduler(t *testing.T) {
	t.Run("enabled registers every cadence", func(t *testing.T) {
		cfg := testSchedulerConfig()
		runner := &fakeRunner{}

		sched, err := initScheduler(&cfg, runner)
		if err != nil {
			t.Fatalf("initScheduler() error = %v", err)
		}
		wantJobs := []string{"catch-up", "latest", "significant"}
		if got := sched.Jobs(); !reflect.DeepEqual(got, wantJobs) {
			t.Errorf("Jobs() = %v, want %v", got, wantJobs)
		}
		wantKinds := []feed.Kind{"all_hour", "significant_month", "all_day"}
		if !reflect.DeepEqual(runner.kinds, wantKinds) {
			t.Errorf("cycle kinds = %v, want %v", runner.kinds, wantKinds)
		}
	})

	t.Run("disabled registers nothing", func(t *testing.T) {
		cfg := testSchedulerConfig()
		cfg.Enabled = false
		runner := &fakeRunner{}

		sched, err := initScheduler(&cfg, runner)
		if err != nil {
			t.Fatalf("initScheduler() error = %v", err)
		}
		if jobs := sched.Jobs(); len(jobs) != 0 {
			t.Errorf("Jobs() = %v, want none", jobs)
		}
		if len(runner.kinds) != 0 {
			t.Errorf("CycleFunc called for %v", runner.kinds)
		}
	})

	t.Run("zero interval is rejected", func(t *testing.T) {
		cfg := testSchedulerConfig()
		cfg.SignificantInterval = 0

		_, err := initScheduler(&cfg, &fakeRunner{})
		if !errors.Is(err, scheduler.ErrInvalidJob) {
			t.Errorf("initScheduler() error = %v, want ErrInvalidJob", err)
		}
	})
}

func TestAlertQueueCloseTolerantOfPartialInit(t *testing.T) {
	var nilQueue *alertQueue
	nilQueue.Close(context.Background())

	empty := &alertQueue{}
	empty.Close(context.Background())
}

type fakeWindowStore struct {
	events  []models.SeismicEvent
	err     error
	filters []models.EventFilter
}

func (s *fakeWindowStore) FindEvents(_ context.Context, f models.EventFilter) ([]models.SeismicEvent, error) {
	s.filters = append(s.filters, f)
	return s.events, s.err
}

type fakeWindowCache struct {
	capacity int
	present  int
	added    []string
	addErr   error
}

func (c *fakeWindowCache) Add(_ context.Context, ev *models.SeismicEvent) error {
	if c.addErr != nil {
		return c.addErr
	}
	c.added = append(c.added, ev.ID)
	return nil
}

func (c *fakeWindowCache) Len() int      { return c.present + len(c.added) }
func (c *fakeWindowCache) Capacity() int { return c.capacity }

func TestWarmRecencyWindow(t *testing.T) {
	newest := []models.SeismicEvent{{ID: "us3"}, {ID: "us2"}, {ID: "us1"}}

	tests := []struct {
		name       string
		store      *fakeWindowStore
		cache      *fakeWindowCache
		wantLoaded int
		wantAdded  []string
		wantQuery  bool
		wantErr    bool
	}{
		{
			name:       "empty window is loaded oldest first",
			store:      &fakeWindowStore{events: newest},
			cache:      &fakeWindowCache{capacity: 50},
			wantLoaded: 3,
			wantAdded:  []string{"us1", "us2", "us3"},
			wantQuery:  true,
		},
		{
			name:  "recovered window is left alone",
			store: &fakeWindowStore{events: newest},
			cache: &fakeWindowCache{capacity: 50, present: 7},
		},
		{
			name:      "store failure",
			store:     &fakeWindowStore{err: errors.New("database closed")},
			cache:     &fakeWindowCache{capacity: 50},
			wantQuery: true,
			wantErr:   true,
		},
		{
			name:      "cache failure",
			store:     &fakeWindowStore{events: newest},
			cache:     &fakeWindowCache{capacity: 50, addErr: errors.New("cache closed")},
			wantQuery: true,
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded, err := warmRecencyWindow(context.Background(), tt.store, tt.cache)
			if (err != nil) != tt.wantErr {
				t.Fatalf("warmRecencyWindow() error = %v, wantErr %v", err, tt.wantErr)
			}
			if loaded != tt.wantLoaded {
				t.Errorf("loaded = %d, want %d", loaded, tt.wantLoaded)
			}
			if !reflect.DeepEqual(tt.cache.added, tt.wantAdded) {
				t.Errorf("added = %v, want %v", tt.cache.added, tt.wantAdded)
			}
			if queried := len(tt.store.filters) > 0; queried != tt.wantQuery {
				t.Fatalf("store queried = %v, want %v", queried, tt.wantQuery)
			}
			if tt.wantQuery && tt.store.filters[0].Limit != 50 {
				t.Errorf("query limit = %d, want cache capacity 50", tt.store.filters[0].Limit)
			}
		})
	}
}
