// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package testinfra

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/models"
)

// FeedRequest is a captured feed request.
type FeedRequest struct {
	Path      string
	UserAgent string
}

// MockFeedServer serves GeoJSON summary feeds at /<kind>.geojson.
type MockFeedServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	feeds    map[string][]models.RawFeature
	status   int
	requests []FeedRequest
}

// NewMockFeedServer starts a server that is closed with the test.
func NewMockFeedServer(t *testing.T) *MockFeedServer {
	t.Helper()

	m := &MockFeedServer{
		feeds:  make(map[string][]models.RawFeature),
		status: http.StatusOK,
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Server.Close)
	return m
}

func (m *MockFeedServer) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, FeedRequest{Path: r.URL.Path, UserAgent: r.UserAgent()})
	status := m.status
	kind := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".geojson")
	features, ok := m.feeds[kind]
	m.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	json.NewEncoder(w).Encode(models.FeedResponse{Type: "FeatureCollection", Features: features}) //nolint:errcheck
}

// URL is the base URL to configure the feed client with.
func (m *MockFeedServer) URL() string {
	return m.Server.URL
}

// SetFeed replaces the features served for kind.
func (m *MockFeedServer) SetFeed(kind string, features ...models.RawFeature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds[kind] = features
}

// SetStatus makes every request answer status with no body.
func (m *MockFeedServer) SetStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Requests returns a copy of the captured requests.
func (m *MockFeedServer) Requests() []FeedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FeedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Feature builds a raw feature with the fields ingestion reads.
func Feature(id string, mag float64, place string, timeMS, updatedMS int64) models.RawFeature {
	return models.RawFeature{
		ID: id,
		Properties: models.FeatureProperties{
			Mag:     &mag,
			Place:   place,
			Time:    timeMS,
			Updated: updatedMS,
			URL:     "https://earthquake.usgs.gov/earthquakes/eventpage/" + id,
		},
		Geometry: models.FeatureGeometry{
			Type:        "Point",
			Coordinates: []float64{-118.2, 35.1, 10},
		},
	}
}
