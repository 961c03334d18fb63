// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package testinfra provides test infrastructure shared across packages.
//
// # Mock Feed Server
//
// MockFeedServer is an httptest server that answers /<kind>.geojson with a
// configurable FeatureCollection. It needs no Docker and is used by the
// sync and api tests:
//
//	srv := testinfra.NewMockFeedServer(t)
//	srv.SetFeed("all_hour", testinfra.Feature("us1000abcd", 5.8, "Ridgecrest, CA", t0, t0))
//	client := feed.NewClient(&config.FeedConfig{BaseURL: srv.URL()})
//
// # Mosquitto Container
//
// Behind the integration build tag, MosquittoContainer starts a real MQTT
// broker with testcontainers-go for the push client tests:
//
//	func TestPushRoundTrip(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    broker, err := testinfra.NewMosquittoContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, broker.Container)
//	    // connect push.Client to broker.BrokerURL
//	}
//
// Container tests are skipped when Docker is unavailable. The first run
// pulls the image.
package testinfra
