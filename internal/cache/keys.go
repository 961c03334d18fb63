// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package cache

import (
	"encoding/binary"
	"time"
)

// Key layout:
//
//	w/<ts:8><id>  recency window entry, value = event JSON
//	i/<id>        window index, value = the id's current w/ key
//	d/<id>        detail entry with TTL, value = event JSON
//
// ts is the occurrence time in unix nanos with the sign bit flipped so that
// big-endian byte order matches time order, including pre-1970 times.
// Equal times sort by id, the same tie-break the event store uses.
var (
	windowPrefix = []byte("w/")
	indexPrefix  = []byte("i/")
	detailPrefix = []byte("d/")

	// windowSeekEnd sorts after every w/ key. '0' follows '/' in ASCII.
	windowSeekEnd = []byte("w0")
)

const rankHeaderLen = 8

func windowKey(occurredAt time.Time, id string) []byte {
	key := make([]byte, 0, len(windowPrefix)+rankHeaderLen+len(id))
	key = append(key, windowPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(occurredAt.UnixNano())^(1<<63))
	return append(key, id...)
}

// parseWindowKey extracts the id from a w/ key.
func parseWindowKey(key []byte) (id string, ok bool) {
	rest := key[len(windowPrefix):]
	if len(rest) <= rankHeaderLen {
		return "", false
	}
	return string(rest[rankHeaderLen:]), true
}

func indexKey(id string) []byte {
	return append(append([]byte{}, indexPrefix...), id...)
}

func detailKey(id string) []byte {
	return append(append([]byte{}, detailPrefix...), id...)
}
