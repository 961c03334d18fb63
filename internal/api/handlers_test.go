// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/alert"
	"github.com/tomtom215/quakewatch/internal/cache"
	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/database"
	"github.com/tomtom215/quakewatch/internal/feed"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/models"
	syncpkg "github.com/tomtom215/quakewatch/internal/sync"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type fakeStore struct {
	mu      sync.Mutex
	events  map[string]models.SeismicEvent
	list    []models.SeismicEvent
	findErr error
	filters []models.EventFilter
}

func (s *fakeStore) FindEvents(_ context.Context, f models.EventFilter) ([]models.SeismicEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, f)
	return s.list, s.findErr
}

func (s *fakeStore) GetEvent(_ context.Context, id string) (*models.SeismicEvent, error) {
	ev, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrEventNotFound, id)
	}
	return &ev, nil
}

type fakeCache struct {
	latest   []models.SeismicEvent
	rangeErr error
	details  map[string]models.SeismicEvent
	setCalls []string
	capacity int
}

func (c *fakeCache) RangeLatest(_ context.Context, offset, limit int) ([]models.SeismicEvent, error) {
	if c.rangeErr != nil {
		return nil, c.rangeErr
	}
	if offset >= len(c.latest) {
		return []models.SeismicEvent{}, nil
	}
	end := offset + limit
	if end > len(c.latest) {
		end = len(c.latest)
	}
	return c.latest[offset:end], nil
}

func (c *fakeCache) GetDetail(_ context.Context, id string) (*models.SeismicEvent, error) {
	ev, ok := c.details[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &ev, nil
}

func (c *fakeCache) SetDetail(_ context.Context, ev *models.SeismicEvent) error {
	c.setCalls = append(c.setCalls, ev.ID)
	return nil
}

func (c *fakeCache) Len() int { return len(c.latest) }

func (c *fakeCache) Capacity() int { return c.capacity }

type fakeStats struct {
	stats  *models.Stats
	err    error
	health *models.HealthReport
}

func (s *fakeStats) Stats(context.Context) (*models.Stats, error) { return s.stats, s.err }

func (s *fakeStats) Health(context.Context) *models.HealthReport { return s.health }

type fakeFetch struct {
	result *syncpkg.CycleResult
	err    error
	kinds  []feed.Kind
	ctxErr error
}

func (f *fakeFetch) TriggerFetch(ctx context.Context, kind feed.Kind) (*syncpkg.CycleResult, error) {
	f.kinds = append(f.kinds, kind)
	f.ctxErr = ctx.Err()
	return f.result, f.err
}

type fakeAlerts struct {
	err error
	ids []string
}

func (a *fakeAlerts) Realert(_ context.Context, id string) error {
	a.ids = append(a.ids, id)
	return a.err
}

type testEnv struct {
	store  *fakeStore
	cache  *fakeCache
	stats  *fakeStats
	fetch  *fakeFetch
	alerts *fakeAlerts
	server http.Handler
}

func event(id string, mag float64) models.SeismicEvent {
	return models.SeismicEvent{
		ID:         id,
		Magnitude:  mag,
		Location:   models.Location{Latitude: 35.7, Longitude: -117.5, Place: "Ridgecrest, CA"},
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestEnv(t *testing.T, mw *ChiMiddlewareConfig) *testEnv {
	t.Helper()
	env := &testEnv{
		store: &fakeStore{events: map[string]models.SeismicEvent{
			"us1": event("us1", 4.5),
		}},
		cache: &fakeCache{capacity: 1000, details: map[string]models.SeismicEvent{}},
		stats: &fakeStats{
			stats:  &models.Stats{Total: 3},
			health: &models.HealthReport{Status: models.StatusHealthy},
		},
		fetch:  &fakeFetch{result: &syncpkg.CycleResult{Kind: feed.KindAllHour, Fetched: 2}},
		alerts: &fakeAlerts{},
	}
	if mw == nil {
		mw = &ChiMiddlewareConfig{CORSAllowedOrigins: []string{"http://localhost:3000"}}
	}
	h := NewHandler(Deps{
		Store:  env.store,
		Cache:  env.cache,
		Stats:  env.stats,
		Fetch:  env.fetch,
		Alerts: env.alerts,
		Config: &config.Config{},
	})
	env.server = NewRouter(h, NewChiMiddleware(mw)).SetupChi()
	return env
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func (env *testEnv) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	var body envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, body
}

func decodeData(t *testing.T, body envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(body.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestEventsServedFromCache(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cache.latest = []models.SeismicEvent{event("c3", 3), event("c2", 2), event("c1", 1)}

	rec, body := env.do(t, http.MethodGet, "/api/v1/events?limit=2&offset=1")
	if rec.Code != http.StatusOK || body.Status != "success" {
		t.Fatalf("status = %d %s", rec.Code, body.Status)
	}
	if !body.Metadata.Cached {
		t.Error("expected cached response")
	}
	var events []models.SeismicEvent
	decodeData(t, body, &events)
	if len(events) != 2 || events[0].ID != "c2" || events[1].ID != "c1" {
		t.Errorf("events = %+v", events)
	}
	if len(env.store.filters) != 0 {
		t.Error("store should not be queried")
	}
}

func TestEventsFallsBackToStore(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		setup func(env *testEnv)
	}{
		{"empty window", "/api/v1/events", func(*testEnv) {}},
		{"cache error", "/api/v1/events", func(env *testEnv) {
			env.cache.latest = []models.SeismicEvent{event("c1", 1)}
			env.cache.rangeErr = cache.ErrCacheUnavailable
		}},
		{"window shorter than page", "/api/v1/events?limit=5", func(env *testEnv) {
			env.cache.latest = []models.SeismicEvent{event("c2", 2), event("c1", 1)}
		}},
		{"page beyond window", "/api/v1/events?limit=100&offset=950", func(env *testEnv) {
			env.cache.latest = []models.SeismicEvent{event("c1", 1)}
		}},
		{"filtered", "/api/v1/events?min_magnitude=4", func(env *testEnv) {
			env.cache.latest = []models.SeismicEvent{event("c1", 1)}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.store.list = []models.SeismicEvent{event("s1", 5)}
			tt.setup(env)

			rec, body := env.do(t, http.MethodGet, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if body.Metadata.Cached {
				t.Error("response should not be marked cached")
			}
			var events []models.SeismicEvent
			decodeData(t, body, &events)
			if len(events) != 1 || events[0].ID != "s1" {
				t.Errorf("events = %+v", events)
			}
		})
	}
}

func TestEventsFilterParsing(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, _ := env.do(t, http.MethodGet,
		"/api/v1/events?min_magnitude=4.5&max_magnitude=7&location=alaska&start_date=2026-01-01T00:00:00Z"+
			"&end_date=2026-02-01T00:00:00Z&processed=false&notification_sent=true&limit=20&offset=40")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.store.filters) != 1 {
		t.Fatalf("filters = %d", len(env.store.filters))
	}
	f := env.store.filters[0]
	if *f.MinMagnitude != 4.5 || *f.MaxMagnitude != 7 || f.Location != "alaska" {
		t.Errorf("magnitude/location filter = %+v", f)
	}
	if !f.StartDate.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) || !f.EndDate.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date filter = %v..%v", f.StartDate, f.EndDate)
	}
	if *f.Processed || !*f.NotificationSent {
		t.Errorf("flag filter = %v %v", *f.Processed, *f.NotificationSent)
	}
	if f.Limit != 20 || f.Offset != 40 {
		t.Errorf("paging = %d/%d", f.Limit, f.Offset)
	}
}

func TestEventsEmptyResultIsArray(t *testing.T) {
	env := newTestEnv(t, nil)
	_, body := env.do(t, http.MethodGet, "/api/v1/events?location=nowhere")
	if string(body.Data) != "[]" {
		t.Errorf("data = %s, want []", body.Data)
	}
}

func TestEventsValidation(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantField string
	}{
		{"limit too high", "limit=5000", "limit"},
		{"limit zero", "limit=0", "limit"},
		{"negative offset", "offset=-1", "offset"},
		{"limit not a number", "limit=ten", "limit"},
		{"magnitude not a number", "min_magnitude=big", "min_magnitude"},
		{"magnitude out of range", "max_magnitude=12", "max_magnitude"},
		{"inverted magnitudes", "min_magnitude=6&max_magnitude=5", "max_magnitude"},
		{"bad date", "start_date=yesterday", "start_date"},
		{"inverted dates", "start_date=2026-02-01T00:00:00Z&end_date=2026-01-01T00:00:00Z", "end_date"},
		{"bad boolean", "processed=maybe", "processed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec, body := env.do(t, http.MethodGet, "/api/v1/events?"+tt.query)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body.Status != "error" || body.Error == nil || body.Error.Code != "VALIDATION_ERROR" {
				t.Fatalf("body = %+v", body)
			}
			if got := body.Error.Details["field"]; got != tt.wantField {
				t.Errorf("field = %v, want %s", got, tt.wantField)
			}
			if len(env.store.filters) != 0 {
				t.Error("store queried despite invalid input")
			}
		})
	}
}

func TestEventsStoreError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.findErr = errors.New("duckdb closed")
	rec, body := env.do(t, http.MethodGet, "/api/v1/events?min_magnitude=1")
	if rec.Code != http.StatusInternalServerError || body.Error.Code != ErrCodeDatabaseError {
		t.Errorf("status = %d, body = %+v", rec.Code, body)
	}
}

func TestEventDetail(t *testing.T) {
	t.Run("detail cache hit", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.cache.details["us2"] = event("us2", 6.1)
		rec, body := env.do(t, http.MethodGet, "/api/v1/events/us2")
		if rec.Code != http.StatusOK || !body.Metadata.Cached {
			t.Fatalf("status = %d cached = %v", rec.Code, body.Metadata.Cached)
		}
		var ev models.SeismicEvent
		decodeData(t, body, &ev)
		if ev.ID != "us2" {
			t.Errorf("id = %s", ev.ID)
		}
	})

	t.Run("store fallback refills cache", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec, body := env.do(t, http.MethodGet, "/api/v1/events/us1")
		if rec.Code != http.StatusOK || body.Metadata.Cached {
			t.Fatalf("status = %d cached = %v", rec.Code, body.Metadata.Cached)
		}
		if len(env.cache.setCalls) != 1 || env.cache.setCalls[0] != "us1" {
			t.Errorf("SetDetail calls = %v", env.cache.setCalls)
		}
	})

	t.Run("not found", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec, body := env.do(t, http.MethodGet, "/api/v1/events/us404")
		if rec.Code != http.StatusNotFound || body.Error.Code != ErrCodeNotFound {
			t.Errorf("status = %d, body = %+v", rec.Code, body)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec, body := env.do(t, http.MethodGet, "/api/v1/events/bad-id")
		if rec.Code != http.StatusBadRequest || body.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("status = %d, body = %+v", rec.Code, body)
		}
	})
}

func TestRealert(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"queued", nil, http.StatusAccepted},
		{"not found", fmt.Errorf("%w: us9", database.ErrEventNotFound), http.StatusNotFound},
		{"already sent", fmt.Errorf("%w: us9", alert.ErrAlreadyNotified), http.StatusConflict},
		{"queue down", errors.New("nats: connection closed"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.alerts.err = tt.err
			rec, body := env.do(t, http.MethodPost, "/api/v1/events/us9/realert")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if len(env.alerts.ids) != 1 || env.alerts.ids[0] != "us9" {
				t.Errorf("Realert ids = %v", env.alerts.ids)
			}
			if tt.err == nil {
				var resp RealertResponse
				decodeData(t, body, &resp)
				if !resp.Queued || resp.ID != "us9" {
					t.Errorf("resp = %+v", resp)
				}
			}
		})
	}
}

func TestTriggerFetch(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"accepted", nil, http.StatusAccepted, ""},
		{"unknown kind", fmt.Errorf("%w: all_year", syncpkg.ErrUnknownFeedKind), http.StatusBadRequest, ErrCodeUnknownFeed},
		{"rate limited", syncpkg.ErrRateLimited, http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{"feed down", fmt.Errorf("%w: status 503", feed.ErrFeedUnavailable), http.StatusBadGateway, ErrCodeExternalServiceFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.fetch.err = tt.err
			rec, body := env.do(t, http.MethodPost, "/api/v1/fetch/all_hour")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if len(env.fetch.kinds) != 1 || env.fetch.kinds[0] != feed.KindAllHour {
				t.Errorf("kinds = %v", env.fetch.kinds)
			}
			if env.fetch.ctxErr != nil {
				t.Errorf("cycle context already done: %v", env.fetch.ctxErr)
			}
			if tt.wantErr != "" {
				if body.Error == nil || body.Error.Code != tt.wantErr {
					t.Errorf("error = %+v, want %s", body.Error, tt.wantErr)
				}
				return
			}
			var res syncpkg.CycleResult
			decodeData(t, body, &res)
			if res.Fetched != 2 {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestStatsAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats models.Stats
	decodeData(t, body, &stats)
	if stats.Total != 3 {
		t.Errorf("stats = %+v", stats)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rec.Code)
	}

	env.stats.health = &models.HealthReport{
		Status:  models.StatusUnhealthy,
		Details: map[string]models.ComponentHealth{"push": {Status: models.StatusUnhealthy, Message: "not connected"}},
	}
	rec, body = env.do(t, http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusServiceUnavailable || body.Error.Code != ErrCodeServiceUnavailable {
		t.Fatalf("unhealthy status = %d body = %+v", rec.Code, body)
	}
	var report models.HealthReport
	decodeData(t, body, &report)
	if report.Details["push"].Message != "not connected" {
		t.Errorf("report = %+v", report)
	}

	env.stats.err = errors.New("count failed")
	rec, _ = env.do(t, http.MethodGet, "/api/v1/stats")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("stats error status = %d", rec.Code)
	}
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, body := env.do(t, http.MethodGet, "/api/v1/health/live")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var up Uptime
	decodeData(t, body, &up)
	if up.Status != models.StatusOK {
		t.Errorf("uptime = %+v", up)
	}
}

func TestResponseHeaders(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cache.details["us2"] = event("us2", 6.1)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/events/us2")
	if rec.Header().Get("ETag") == "" {
		t.Error("missing ETag")
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestRespondJSONNotModified(t *testing.T) {
	resp := &models.APIResponse{Status: "success", Data: "x", Metadata: models.Metadata{Timestamp: time.Unix(0, 0).UTC()}}

	first := httptest.NewRecorder()
	respondJSON(first, httptest.NewRequest(http.MethodGet, "/x", http.NoBody), http.StatusOK, resp)
	etag := first.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
	req.Header.Set("If-None-Match", etag)
	second := httptest.NewRecorder()
	respondJSON(second, req, http.StatusOK, resp)
	if second.Code != http.StatusNotModified || second.Body.Len() != 0 {
		t.Errorf("status = %d body = %q", second.Code, second.Body.String())
	}

	post := httptest.NewRequest(http.MethodPost, "/x", http.NoBody)
	post.Header.Set("If-None-Match", etag)
	third := httptest.NewRecorder()
	respondJSON(third, post, http.StatusOK, resp)
	if third.Code != http.StatusOK {
		t.Errorf("POST status = %d", third.Code)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line\\x0abreak"},
		{"tab\there", "tab\\x09here"},
		{"del\x7f", "del\\x7f"},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateETagStable(t *testing.T) {
	a := generateETag([]byte(`{"a":1}`))
	if a != generateETag([]byte(`{"a":1}`)) {
		t.Error("ETag not deterministic")
	}
	if a == generateETag([]byte(`{"a":2}`)) {
		t.Error("ETag collision on different input")
	}
	if strings.ContainsAny(a, "\" ") {
		t.Errorf("raw ETag %q should be bare hex", a)
	}
}
