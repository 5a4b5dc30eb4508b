// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache implements the TTL + stale-while-revalidate request cache.
//
// Each logical resource (the view stream, metrics, etc.) owns one store: a
// small versioned document of at most MaxEntries entries keyed by the
// canonical query key. Staleness is advisory only; Get never refuses to
// return stale data. The caller decides whether a stale hit warrants a
// background refresh.
//
// Cache corruption must never break the primary request path: store write
// failures are logged and answered with a defensive Clear of the whole
// store rather than propagated.
package cache

import "errors"

// Sentinel errors for cache store operations.
var (
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("cache store is closed")

	// ErrResourceNotFound is returned by Load when no document exists yet
	// for the requested logical resource.
	ErrResourceNotFound = errors.New("cache resource not found")
)
