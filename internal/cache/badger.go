// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package cache implements the Recency Cache on top of BadgerDB.
//
// Two independent structures share one Badger instance:
//
//   - the recency window: the most recent events by occurrence time,
//     bounded by rank (capacity), never by TTL
//   - the detail cache: one entry per event id that expires after a fixed
//     TTL and is not tied to window membership
//
// Badger keeps keys sorted, so inserting is O(log n) and reading the k
// latest entries is a reverse seek plus k steps. The cache is never the
// source of truth: callers fall back to the event store on any error.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
)

var (
	// ErrCacheUnavailable is returned by every operation after Close or
	// when the underlying store fails.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrCacheMiss is returned by GetDetail when no live entry exists.
	ErrCacheMiss = errors.New("cache miss")
)

// trimBatch bounds the number of deletions per transaction.
const trimBatch = 500

// Config configures a BadgerCache.
type Config struct {
	// Dir is the Badger directory. Empty opens an in-memory instance.
	Dir string

	// Capacity is the recency window size. Defaults to 1000.
	Capacity int

	// DetailTTL is the lifetime of detail entries. Defaults to 24h.
	DetailTTL time.Duration
}

// BadgerCache is the Badger-backed recency window and detail cache.
type BadgerCache struct {
	db        *badger.DB
	capacity  int
	detailTTL time.Duration

	// mu serializes window writers so the index and size stay consistent.
	mu   sync.Mutex
	size int

	closed atomic.Bool
}

// Open opens the cache and rebuilds the window bookkeeping from disk.
func Open(cfg Config) (*BadgerCache, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.DetailTTL <= 0 {
		cfg.DetailTTL = 24 * time.Hour
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.Dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	c := &BadgerCache{
		db:        db,
		capacity:  cfg.Capacity,
		detailTTL: cfg.DetailTTL,
	}
	if err := c.recover(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Info().
		Str("dir", cfg.Dir).
		Int("capacity", cfg.Capacity).
		Int("entries", c.size).
		Msg("Recency cache opened")
	return c, nil
}

// recover counts window entries.
func (c *BadgerCache) recover() error {
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(windowPrefix); it.ValidForPrefix(windowPrefix); it.Next() {
			if _, ok := parseWindowKey(it.Item().Key()); ok {
				c.size++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan recency window: %w", err)
	}
	metrics.RecencyCacheEntries.Set(float64(c.size))
	return nil
}

func (c *BadgerCache) check(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCacheUnavailable
	}
	return ctx.Err()
}

// Add inserts ev into the recency window, replacing any previous entry for
// the same id, then trims the window to capacity. Ties on occurrence time
// are ordered by id.
func (c *BadgerCache) Add(ctx context.Context, ev *models.SeismicEvent) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	replaced := false
	err = c.db.Update(func(txn *badger.Txn) error {
		idx := indexKey(ev.ID)
		item, err := txn.Get(idx)
		switch {
		case err == nil:
			oldKey, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(oldKey); err != nil {
				return err
			}
			replaced = true
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		key := windowKey(ev.OccurredAt, ev.ID)
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(idx, key)
	})
	if err != nil {
		return fmt.Errorf("%w: add %s: %w", ErrCacheUnavailable, ev.ID, err)
	}

	if !replaced {
		c.size++
	}
	return c.trimLocked(c.capacity)
}

// TrimToCapacity evicts the oldest entries until at most n remain.
func (c *BadgerCache) TrimToCapacity(ctx context.Context, n int) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trimLocked(n)
}

// trimLocked must be called with mu held.
func (c *BadgerCache) trimLocked(n int) error {
	if n < 0 {
		n = 0
	}
	for c.size > n {
		excess := c.size - n
		if excess > trimBatch {
			excess = trimBatch
		}

		removed := 0
		err := c.db.Update(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			var victims [][]byte
			for it.Seek(windowPrefix); it.ValidForPrefix(windowPrefix) && len(victims) < excess; it.Next() {
				victims = append(victims, it.Item().KeyCopy(nil))
			}
			for _, key := range victims {
				if err := txn.Delete(key); err != nil {
					return err
				}
				if id, ok := parseWindowKey(key); ok {
					if err := txn.Delete(indexKey(id)); err != nil {
						return err
					}
				}
			}
			removed = len(victims)
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: trim: %w", ErrCacheUnavailable, err)
		}
		if removed == 0 {
			// bookkeeping drifted from disk; trust the disk
			c.size = n
			break
		}
		c.size -= removed
	}
	metrics.RecencyCacheEntries.Set(float64(c.size))
	return nil
}

// RangeLatest returns up to limit events from the window, newest first,
// skipping the first offset.
func (c *BadgerCache) RangeLatest(ctx context.Context, offset, limit int) ([]models.SeismicEvent, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.SeismicEvent{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	events := make([]models.SeismicEvent, 0, limit)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchSize = limit
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Seek(windowSeekEnd); it.ValidForPrefix(windowPrefix) && len(events) < limit; it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			var ev models.SeismicEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: range: %w", ErrCacheUnavailable, err)
	}
	return events, nil
}

// SetDetail writes the per-id detail entry with the configured TTL.
func (c *BadgerCache) SetDetail(ctx context.Context, ev *models.SeismicEvent) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(detailKey(ev.ID), data).WithTTL(c.detailTTL))
	})
	if err != nil {
		return fmt.Errorf("%w: set detail %s: %w", ErrCacheUnavailable, ev.ID, err)
	}
	return nil
}

// GetDetail returns the cached detail entry or ErrCacheMiss.
func (c *BadgerCache) GetDetail(ctx context.Context, id string) (*models.SeismicEvent, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	var ev models.SeismicEvent
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(detailKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ev)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get detail %s: %w", ErrCacheUnavailable, id, err)
	}
	return &ev, nil
}

// Len returns the number of events in the recency window.
func (c *BadgerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Capacity returns the configured window size.
func (c *BadgerCache) Capacity() int {
	return c.capacity
}

// Ready reports whether the cache can serve requests.
func (c *BadgerCache) Ready() bool {
	return !c.closed.Load() && !c.db.IsClosed()
}

// RunGC reclaims value log space. It is a no-op for in-memory instances.
func (c *BadgerCache) RunGC() error {
	if c.closed.Load() {
		return ErrCacheUnavailable
	}
	for {
		err := c.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log GC: %w", err)
		}
	}
}

// Close closes the underlying Badger instance. Later calls return
// ErrCacheUnavailable.
func (c *BadgerCache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close badger cache: %w", err)
	}
	return nil
}
