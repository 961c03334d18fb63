// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/quakewatch/internal/models"
	"github.com/tomtom215/quakewatch/internal/validation"
)

// eventsQuery is the raw query string of GET /events.
type eventsQuery struct {
	MinMagnitude     *float64 `query:"min_magnitude" validate:"omitempty,gte=-2,lte=10"`
	MaxMagnitude     *float64 `query:"max_magnitude" validate:"omitempty,gte=-2,lte=10"`
	Location         string   `query:"location" validate:"max=200"`
	StartDate        string   `query:"start_date" validate:"omitempty,rfc3339"`
	EndDate          string   `query:"end_date" validate:"omitempty,rfc3339"`
	Processed        string   `query:"processed" validate:"omitempty,boolean"`
	NotificationSent string   `query:"notification_sent" validate:"omitempty,boolean"`
	Limit            int      `query:"limit" validate:"gte=1,lte=1000"`
	Offset           int      `query:"offset" validate:"gte=0"`
}

// eventIDParam is the {id} path segment. Feed ids are network code plus
// a serial, e.g. "us7000abcd".
type eventIDParam struct {
	ID string `query:"id" validate:"required,max=64,alphanum"`
}

// parseEventsQuery validates the query string and converts it into a
// store filter.
func parseEventsQuery(r *http.Request) (*models.EventFilter, *validation.RequestValidationError) {
	values := r.URL.Query()
	q := eventsQuery{
		Location:         values.Get("location"),
		StartDate:        values.Get("start_date"),
		EndDate:          values.Get("end_date"),
		Processed:        values.Get("processed"),
		NotificationSent: values.Get("notification_sent"),
		Limit:            models.DefaultQueryLimit,
	}

	var verr *validation.RequestValidationError
	if q.MinMagnitude, verr = floatParam(values, "min_magnitude"); verr != nil {
		return nil, verr
	}
	if q.MaxMagnitude, verr = floatParam(values, "max_magnitude"); verr != nil {
		return nil, verr
	}
	if q.Limit, verr = intParam(values, "limit", models.DefaultQueryLimit); verr != nil {
		return nil, verr
	}
	if q.Offset, verr = intParam(values, "offset", 0); verr != nil {
		return nil, verr
	}

	if verr := validation.ValidateStruct(&q); verr != nil {
		return nil, verr
	}
	return q.toFilter()
}

func (q *eventsQuery) toFilter() (*models.EventFilter, *validation.RequestValidationError) {
	f := &models.EventFilter{
		MinMagnitude: q.MinMagnitude,
		MaxMagnitude: q.MaxMagnitude,
		Location:     q.Location,
		Limit:        q.Limit,
		Offset:       q.Offset,
	}

	if f.MinMagnitude != nil && f.MaxMagnitude != nil && *f.MaxMagnitude < *f.MinMagnitude {
		return nil, validation.NewFieldError("max_magnitude", "gtefield", *f.MaxMagnitude,
			"max_magnitude must be greater than or equal to min_magnitude")
	}

	// Both already passed the rfc3339 tag.
	if q.StartDate != "" {
		t, _ := time.Parse(time.RFC3339, q.StartDate)
		f.StartDate = &t
	}
	if q.EndDate != "" {
		t, _ := time.Parse(time.RFC3339, q.EndDate)
		f.EndDate = &t
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, validation.NewFieldError("end_date", "gtefield", q.EndDate,
			"end_date must not be before start_date")
	}

	if q.Processed != "" {
		b, _ := strconv.ParseBool(q.Processed)
		f.Processed = &b
	}
	if q.NotificationSent != "" {
		b, _ := strconv.ParseBool(q.NotificationSent)
		f.NotificationSent = &b
	}

	f.Normalize()
	return f, nil
}

func floatParam(values url.Values, key string) (*float64, *validation.RequestValidationError) {
	raw := values.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, validation.NewFieldError(key, "number", raw, key+" must be a number")
	}
	return &v, nil
}

func intParam(values url.Values, key string, def int) (int, *validation.RequestValidationError) {
	raw := values.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validation.NewFieldError(key, "number", raw, key+" must be an integer")
	}
	return v, nil
}
