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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "constellation_cache_hits_total",
		Help: "Cache hits by logical resource",
	}, []string{"resource"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "constellation_cache_misses_total",
		Help: "Cache misses (including version mismatches) by logical resource",
	}, []string{"resource"})

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "constellation_cache_evictions_total",
		Help: "Entries evicted oldest-first to stay within the store cap",
	}, []string{"resource"})
)
