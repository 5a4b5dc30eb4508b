// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinate turns rapid, overlapping view fetches into a coherent
// request sequence: per-attempt timeouts, exponential-backoff retry,
// cooperative cancellation, in-flight deduplication, and response-race
// resolution for the primary view-fetch stream.
package coordinate

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for coordinator operations.
var (
	// ErrCancelled is the distinguished cancellation error. It is raised
	// when the external signal fires before or during a fetch, and is
	// never retried. Call sites that initiated the cancellation swallow
	// it; it must never surface as a user-visible failure.
	ErrCancelled = errors.New("request cancelled")

	// ErrAttemptTimeout marks a single attempt exceeding its own timer.
	// Timeouts are retryable; the sentinel exists for diagnostics only.
	ErrAttemptTimeout = errors.New("attempt timed out")

	// ErrServerStatus marks a retryable 5xx response.
	ErrServerStatus = errors.New("server error status")

	// ErrBadStatus marks a non-retryable 4xx response.
	ErrBadStatus = errors.New("unexpected response status")
)

// AttemptTiming records one attempt for observability.
type AttemptTiming struct {
	// Attempt is the 1-based attempt number.
	Attempt int

	// Duration is how long the attempt ran.
	Duration time.Duration

	// TimedOut is true when the attempt was ended by its own timer.
	TimedOut bool

	// Err holds the attempt's failure, nil on success.
	Err error
}

// Timing accumulates per-attempt and cumulative fetch timing. It is
// attached to the eventual result or error.
type Timing struct {
	Attempts []AttemptTiming
	Total    time.Duration
	Success  bool
	Aborted  bool
}

// FetchError wraps the final error of an exhausted or aborted fetch with
// its accumulated timing metadata.
type FetchError struct {
	Err    error
	Timing Timing
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed after %d attempt(s): %v", len(e.Timing.Attempts), e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *FetchError) Unwrap() error { return e.Err }

// IsCancellation reports whether err is (or wraps) the distinguished
// cancellation error.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled)
}
