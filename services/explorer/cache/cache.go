// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/AleutianAI/constellation/services/explorer/query"
)

// Defaults for RequestCache behavior.
const (
	// DefaultMaxEntries caps the number of entries per resource store.
	DefaultMaxEntries = 5

	// DefaultFreshness is the window after which a hit is reported stale.
	DefaultFreshness = 5 * time.Minute
)

// Lookup is the result of a cache hit.
type Lookup struct {
	// Data is the cached payload.
	Data json.RawMessage

	// IsStale is true when the entry's age exceeds the freshness window.
	// Staleness is advisory: the data is still returned and usable.
	IsStale bool

	// Age is how long ago the entry was written.
	Age time.Duration
}

// Options configures a RequestCache.
type Options struct {
	// MaxEntries caps entries per store. Default: DefaultMaxEntries.
	MaxEntries int

	// Freshness is the staleness window. Default: DefaultFreshness.
	Freshness time.Duration

	// Logger for non-fatal store failures. Default: slog.Default().
	Logger *slog.Logger

	// Now overrides the clock for tests. Default: time.Now.
	Now func() time.Time
}

// RequestCache is a TTL + stale-while-revalidate cache over one logical
// resource's store.
//
// Thread Safety: RequestCache itself holds no mutable state beyond the
// Store; safety is delegated to the Store implementation. Writes are
// last-write-wins per key.
type RequestCache struct {
	resource   string
	store      Store
	maxEntries int
	freshness  time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a RequestCache for a logical resource backed by store.
func New(resource string, store Store, opts Options) *RequestCache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Freshness <= 0 {
		opts.Freshness = DefaultFreshness
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RequestCache{
		resource:   resource,
		store:      store,
		maxEntries: opts.MaxEntries,
		freshness:  opts.Freshness,
		logger:     opts.Logger.With(slog.String("cache_resource", resource)),
		now:        opts.Now,
	}
}

// Get returns the cached payload for key, or nil on a miss.
//
// Version mismatches at the document or entry level are treated as misses.
// Load failures are logged and treated as misses; they never propagate.
func (c *RequestCache) Get(key query.Key) *Lookup {
	doc, err := c.store.Load(c.resource)
	if err != nil {
		if !errors.Is(err, ErrResourceNotFound) {
			c.logger.Warn("cache load failed", "error", err)
		}
		cacheMisses.WithLabelValues(c.resource).Inc()
		return nil
	}
	if doc.Version != SchemaVersion {
		cacheMisses.WithLabelValues(c.resource).Inc()
		return nil
	}
	entry, ok := doc.Entries[string(key)]
	if !ok || entry.Version != SchemaVersion {
		cacheMisses.WithLabelValues(c.resource).Inc()
		return nil
	}
	age := c.now().Sub(time.UnixMilli(entry.TimestampMilli))
	cacheHits.WithLabelValues(c.resource).Inc()
	return &Lookup{
		Data:    entry.Payload,
		IsStale: age > c.freshness,
		Age:     age,
	}
}

// Set stores payload under key, best-effort.
//
// After insert, entries beyond MaxEntries are evicted oldest-timestamp
// first. A failed save is logged and answered with a defensive Clear of
// the whole store; it never propagates to the caller.
func (c *RequestCache) Set(key query.Key, payload json.RawMessage) {
	doc, err := c.store.Load(c.resource)
	if err != nil || doc.Version != SchemaVersion || doc.Entries == nil {
		doc = Document{Version: SchemaVersion, Entries: make(map[string]Entry)}
	}
	doc.Entries[string(key)] = Entry{
		Version:        SchemaVersion,
		TimestampMilli: c.now().UnixMilli(),
		Payload:        payload,
	}
	for len(doc.Entries) > c.maxEntries {
		evictOldest(doc.Entries)
		cacheEvictions.WithLabelValues(c.resource).Inc()
	}
	if err := c.store.Save(c.resource, doc); err != nil {
		c.logger.Warn("cache save failed, clearing store", "error", err)
		c.Clear()
	}
}

// Clear removes the whole store for this resource, best-effort.
func (c *RequestCache) Clear() {
	if err := c.store.Delete(c.resource); err != nil {
		c.logger.Warn("cache clear failed", "error", err)
	}
}

// Len returns the current entry count (0 on any load failure).
func (c *RequestCache) Len() int {
	doc, err := c.store.Load(c.resource)
	if err != nil || doc.Version != SchemaVersion {
		return 0
	}
	return len(doc.Entries)
}

// evictOldest removes the entry with the smallest timestamp. Ties break on
// the lexically smallest key so eviction stays deterministic.
func evictOldest(entries map[string]Entry) {
	var (
		oldestKey string
		oldestTS  int64
		first     = true
	)
	for k, e := range entries {
		if first || e.TimestampMilli < oldestTS ||
			(e.TimestampMilli == oldestTS && k < oldestKey) {
			oldestKey, oldestTS, first = k, e.TimestampMilli, false
		}
	}
	delete(entries, oldestKey)
}
