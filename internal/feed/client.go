// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package feed fetches pages of candidate events from the USGS GeoJSON
summary feed.

A Client performs exactly one GET per Fetch. It never retries: retry and
cadence belong to the scheduler. Every failure mode (transport error,
timeout, non-200 status, undecodable body, open circuit) surfaces as
ErrFeedUnavailable so callers can use a single errors.Is check.
*/
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
)

// ErrFeedUnavailable is returned for every failed fetch.
var ErrFeedUnavailable = errors.New("feed unavailable")

// Kind names a variant of the summary feed, e.g. "all_hour".
type Kind string

const (
	KindAllHour          Kind = "all_hour"
	KindAllDay           Kind = "all_day"
	KindSignificantMonth Kind = "significant_month"
)

// Valid reports whether k names a published summary feed. Config
// validation applies the same rule to the scheduled feeds.
func (k Kind) Valid() bool {
	return config.ValidFeedKind(string(k))
}

const defaultTimeout = 10 * time.Second

// maxErrorBodySize limits how much of a failed response is kept for the error.
const maxErrorBodySize = 4 * 1024

// Fetcher is the contract consumed by the fetch cycle.
type Fetcher interface {
	Fetch(ctx context.Context, kind Kind) ([]models.RawFeature, error)
}

// Client talks to the summary feed.
type Client struct {
	baseURL   string
	userAgent string
	maxEvents int
	http      *http.Client
	breaker   *breaker
}

// NewClient creates a feed client from configuration.
func NewClient(cfg *config.FeedConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		maxEvents: cfg.MaxEventsPerFetch,
		http:      &http.Client{Timeout: timeout},
		breaker:   newBreaker("usgs-feed", cfg.BreakerFailures, cfg.BreakerTimeout),
	}
}

// URL returns the request URL for kind.
func (c *Client) URL(kind Kind) string {
	return fmt.Sprintf("%s/%s.geojson", c.baseURL, kind)
}

// Fetch retrieves one page of features for kind in feed order. A page with
// no features yields an empty, non-nil slice.
func (c *Client) Fetch(ctx context.Context, kind Kind) ([]models.RawFeature, error) {
	start := time.Now()
	features, err := c.breaker.execute(func() ([]models.RawFeature, error) {
		return c.fetch(ctx, kind)
	})
	metrics.RecordFeedFetch(string(kind), time.Since(start), len(features), err)
	if err != nil {
		if !errors.Is(err, ErrFeedUnavailable) {
			err = fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
		}
		logging.Ctx(ctx).Warn().Err(err).Str("feed", string(kind)).Msg("Feed fetch failed")
		return nil, err
	}

	if c.maxEvents > 0 && len(features) > c.maxEvents {
		features = features[:c.maxEvents]
	}
	return features, nil
}

func (c *Client) fetch(ctx context.Context, kind Kind) ([]models.RawFeature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(kind), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrFeedUnavailable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrFeedUnavailable, resp.StatusCode, body)
	}

	var page models.FeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrFeedUnavailable, err)
	}
	if page.Features == nil {
		return []models.RawFeature{}, nil
	}
	return page.Features, nil
}

// readBodyForError reads at most maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	if len(body) == maxErrorBodySize {
		return string(body) + "... (truncated)"
	}
	return strings.TrimSpace(string(body))
}

// BreakerState reports the circuit state: closed, half-open or open.
func (c *Client) BreakerState() string {
	return stateToString(c.breaker.state())
}
