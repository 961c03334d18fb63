// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package services

import (
	"context"
	"time"

	"github.com/tomtom215/quakewatch/internal/logging"
)

const defaultGCInterval = 10 * time.Minute

// GarbageCollector is satisfied by *cache.BadgerCache.
type GarbageCollector interface {
	RunGC() error
}

// CacheGCService reclaims Badger value log space on a fixed interval.
// A failed pass is logged and retried at the next tick.
type CacheGCService struct {
	gc       GarbageCollector
	interval time.Duration
	name     string
}

// NewCacheGCService wraps gc. A non-positive interval means 10 minutes.
func NewCacheGCService(gc GarbageCollector, interval time.Duration) *CacheGCService {
	if interval <= 0 {
		interval = defaultGCInterval
	}
	return &CacheGCService{
		gc:       gc,
		interval: interval,
		name:     "cache-gc",
	}
}

// Serve implements suture.Service.
func (s *CacheGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.gc.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Cache value log GC failed")
				continue
			}
			logging.Debug().Dur("duration", time.Since(start)).Msg("Cache value log GC completed")
		}
	}
}

func (s *CacheGCService) String() string {
	return s.name
}
