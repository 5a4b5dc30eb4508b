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
	"context"
	"sync"
)

// Verdict is the race-resolution decision for a settled response.
type Verdict int

const (
	// Apply means the response may mutate visible state.
	Apply Verdict = iota

	// DropStale means a newer request was dispatched; the response is
	// discarded without touching visible state.
	DropStale

	// DropEmpty means the response carried no clusters while prior results
	// already exist; it is discarded.
	DropEmpty

	// DropCancelled means the request was explicitly cancelled; its
	// response is never applied.
	DropCancelled
)

// String returns the verdict name for logging.
func (v Verdict) String() string {
	switch v {
	case Apply:
		return "apply"
	case DropStale:
		return "drop_stale"
	case DropEmpty:
		return "drop_empty"
	case DropCancelled:
		return "drop_cancelled"
	default:
		return "unknown"
	}
}

// Stream orders the primary view-fetch stream.
//
// Description:
//
//	Each dispatched request carries a monotonically increasing identifier,
//	and dispatching cancels the previous in-flight request's context
//	(cooperative, best-effort: the network layer may still deliver a
//	response racing the signal, which is why Resolve, not cancellation, is
//	the correctness guarantee). A response applies iff it is still the
//	most recently dispatched one, or — the bootstrap exception — the view
//	holds zero prior results and the response is non-empty, letting an
//	earlier, still-useful response populate an empty view.
//
// Thread Safety: safe for concurrent use.
type Stream struct {
	mu             sync.Mutex
	nextID         uint64
	lastDispatched uint64
	resultsHeld    bool
	cancelPrev     context.CancelFunc
}

// NewStream creates an empty stream context.
func NewStream() *Stream {
	return &Stream{}
}

// Dispatch registers a new request on the stream.
//
// It cancels the previously dispatched request's context and returns the
// new request's id along with a context derived from parent that will be
// cancelled by the next Dispatch (or by the returned cancel func).
func (s *Stream) Dispatch(parent context.Context) (uint64, context.Context, context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelPrev != nil {
		s.cancelPrev()
	}
	ctx, cancel := context.WithCancel(parent)
	s.nextID++
	s.lastDispatched = s.nextID
	s.cancelPrev = cancel
	return s.nextID, ctx, cancel
}

// Resolve decides whether a settled response may be applied.
//
// Inputs:
//   - id: The identifier issued by Dispatch.
//   - empty: True when the response carried no clusters.
//   - cancelled: True when the request's context was cancelled.
//
// On Apply the stream records that results are now held, which closes the
// bootstrap window for subsequent stale responses.
func (s *Stream) Resolve(id uint64, empty, cancelled bool) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v Verdict
	switch {
	case cancelled:
		v = DropCancelled
	case empty:
		// Empty results never overwrite existing state, and an empty
		// bootstrap has nothing to apply either.
		v = DropEmpty
	case id == s.lastDispatched || !s.resultsHeld:
		s.resultsHeld = true
		v = Apply
	default:
		v = DropStale
	}
	if v != Apply {
		responsesDropped.WithLabelValues(v.String()).Inc()
	}
	return v
}

// Active reports whether id is still the most recently dispatched request.
// User-visible failure messages are surfaced only for the active request.
func (s *Stream) Active(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id == s.lastDispatched
}

// ResultsHeld reports whether any response has been applied yet.
func (s *Stream) ResultsHeld() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultsHeld
}
