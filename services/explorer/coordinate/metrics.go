// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "constellation_fetch_attempts_total",
		Help: "Individual fetch attempts, including retries",
	})

	fetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "constellation_fetch_retries_total",
		Help: "Fetch attempts beyond the first for a logical request",
	})

	dedupShared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "constellation_fetch_dedup_shared_total",
		Help: "Calls answered by an already in-flight identical request",
	})

	responsesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "constellation_responses_dropped_total",
		Help: "View responses dropped by race resolution, by reason",
	}, []string{"reason"})
)
