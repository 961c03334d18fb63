// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package validation validates HTTP request parameters with
// go-playground/validator v10.
//
// A single validator instance is shared process-wide so struct metadata is
// cached once. Field names in error messages come from the `query` struct
// tag, so a failure reads the way the client spelled the parameter:
//
//	type eventsQuery struct {
//	    Limit     int    `query:"limit" validate:"gte=1,lte=1000"`
//	    StartDate string `query:"start_date" validate:"omitempty,rfc3339"`
//	}
//
//	if verr := validation.ValidateStruct(&q); verr != nil {
//	    respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
//	    return
//	}
//
// Besides the built-in tags, rfc3339 accepts timestamps parseable with
// time.RFC3339.
package validation
