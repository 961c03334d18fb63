// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedFeature is returned by RawFeature.ToEvent when a feature lacks
// an id or a usable geometry.
var ErrMalformedFeature = errors.New("malformed feature")

// FeedResponse is the GeoJSON FeatureCollection returned by the feed.
type FeedResponse struct {
	Type     string       `json:"type"`
	Features []RawFeature `json:"features"`
}

// RawFeature is one GeoJSON feature as delivered by the feed.
type RawFeature struct {
	ID         string            `json:"id"`
	Properties FeatureProperties `json:"properties"`
	Geometry   FeatureGeometry   `json:"geometry"`
}

// FeatureProperties holds the subset of feature properties we consume.
// Mag is a pointer because the feed reports null for some events.
type FeatureProperties struct {
	Mag     *float64 `json:"mag"`
	Place   string   `json:"place"`
	Time    int64    `json:"time"`
	Updated int64    `json:"updated"`
	URL     string   `json:"url"`
	Alert   *string  `json:"alert"`
	Tsunami int      `json:"tsunami"`
}

// FeatureGeometry holds [longitude, latitude, depth].
type FeatureGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// ToEvent converts the feature into a fresh SeismicEvent with both flags
// false. Storage timestamps are left zero for the store to assign.
func (f *RawFeature) ToEvent() (*SeismicEvent, error) {
	if f.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedFeature)
	}
	coords := f.Geometry.Coordinates
	if len(coords) < 2 {
		return nil, fmt.Errorf("%w: %s has %d coordinates", ErrMalformedFeature, f.ID, len(coords))
	}

	ev := &SeismicEvent{
		ID: f.ID,
		Location: Location{
			Longitude: coords[0],
			Latitude:  coords[1],
			Place:     f.Properties.Place,
		},
		OccurredAt:    time.UnixMilli(f.Properties.Time).UTC(),
		FeedUpdatedAt: f.Properties.Updated,
		SourceURL:     f.Properties.URL,
		AlertLevel:    f.Properties.Alert,
		Tsunami:       f.Properties.Tsunami != 0,
	}
	if f.Properties.Mag != nil {
		ev.Magnitude = *f.Properties.Mag
	}
	if len(coords) > 2 {
		ev.Depth = coords[2]
	}
	return ev, nil
}
