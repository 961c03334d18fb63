// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert_event"))

	RecordDBQuery("insert_event", 5*time.Millisecond, nil)
	RecordDBQuery("insert_event", 5*time.Millisecond, errors.New("constraint"))

	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert_event")); got != before+1 {
		t.Errorf("DBQueryErrors = %v, want %v", got, before+1)
	}
}

func TestRecordFeedFetch(t *testing.T) {
	errBefore := testutil.ToFloat64(FeedFetchErrors.WithLabelValues("test_feed"))
	featBefore := testutil.ToFloat64(FeedFeaturesReturned.WithLabelValues("test_feed"))

	RecordFeedFetch("test_feed", time.Second, 12, nil)
	RecordFeedFetch("test_feed", time.Second, 0, errors.New("timeout"))

	if got := testutil.ToFloat64(FeedFeaturesReturned.WithLabelValues("test_feed")); got != featBefore+12 {
		t.Errorf("features = %v, want %v", got, featBefore+12)
	}
	if got := testutil.ToFloat64(FeedFetchErrors.WithLabelValues("test_feed")); got != errBefore+1 {
		t.Errorf("errors = %v, want %v", got, errBefore+1)
	}
}

func TestRecordIngest(t *testing.T) {
	labels := []string{"new", "updated", "unchanged", "failed"}
	before := make(map[string]float64, len(labels))
	for _, l := range labels {
		before[l] = testutil.ToFloat64(EventsIngested.WithLabelValues(l))
	}

	RecordIngest(3, 2, 1, 4)

	want := map[string]float64{"new": 3, "updated": 2, "unchanged": 1, "failed": 4}
	for _, l := range labels {
		if got := testutil.ToFloat64(EventsIngested.WithLabelValues(l)) - before[l]; got != want[l] {
			t.Errorf("%s delta = %v, want %v", l, got, want[l])
		}
	}
}

func TestRecordCacheRead(t *testing.T) {
	hits := testutil.ToFloat64(CacheReads.WithLabelValues("detail", "hit"))
	misses := testutil.ToFloat64(CacheReads.WithLabelValues("detail", "miss"))

	RecordCacheRead("detail", true)
	RecordCacheRead("detail", false)
	RecordCacheRead("detail", false)

	if got := testutil.ToFloat64(CacheReads.WithLabelValues("detail", "hit")); got != hits+1 {
		t.Errorf("hits = %v, want %v", got, hits+1)
	}
	if got := testutil.ToFloat64(CacheReads.WithLabelValues("detail", "miss")); got != misses+2 {
		t.Errorf("misses = %v, want %v", got, misses+2)
	}
}

func TestSetPushConnected(t *testing.T) {
	SetPushConnected(true)
	if got := testutil.ToFloat64(PushConnected); got != 1 {
		t.Errorf("PushConnected = %v, want 1", got)
	}
	SetPushConnected(false)
	if got := testutil.ToFloat64(PushConnected); got != 0 {
		t.Errorf("PushConnected = %v, want 0", got)
	}
}
