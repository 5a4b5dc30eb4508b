// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query defines the canonical view query and its cache/dedup key.
//
// A ViewQuery captures every parameter that affects which clusters the
// backend returns: the visible-count target, the optional ego account, the
// Louvain weight, the expand depth, the node budget, the explicitly
// expanded/collapsed cluster id sets, and an optional focus leaf.
//
// Two logically identical queries must produce byte-identical canonical
// forms (and therefore identical keys) regardless of the order the id sets
// were accumulated in. Float parameters are serialized with fixed
// two-decimal precision so tiny slider jitter does not fragment the cache.
package query

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key is the canonical signature of a ViewQuery. It is used both as the
// persistent-cache key and as the in-flight deduplication key.
type Key string

// ViewQuery holds the parameters of a single view fetch.
//
// The zero value is not useful; construct via the session or fill the
// fields and call Normalize before deriving a Key.
type ViewQuery struct {
	// VisibleTarget is the desired number of visible clusters.
	VisibleTarget int

	// Ego is the optional account the view is centered on.
	Ego string

	// LouvainWeight blends follow-graph vs engagement-graph edges.
	// Clamped to [0, 1].
	LouvainWeight float64

	// ExpandDepth controls how deep the baseline hierarchy cut sits.
	// Clamped to [0, 1].
	ExpandDepth float64

	// Budget is the hard cap on visible clusters.
	Budget int

	// Expanded lists cluster ids the user has explicitly expanded.
	Expanded []string

	// Collapsed lists cluster ids the user has explicitly collapsed.
	Collapsed []string

	// FocusLeaf is the optional leaf cluster whose members are exploded.
	FocusLeaf string
}

// Normalize clamps the float parameters to their valid ranges and sorts
// and deduplicates the id sets in place.
func (q *ViewQuery) Normalize() {
	q.LouvainWeight = clamp01(q.LouvainWeight)
	q.ExpandDepth = clamp01(q.ExpandDepth)
	q.Expanded = sortedUnique(q.Expanded)
	q.Collapsed = sortedUnique(q.Collapsed)
}

// Canonical returns the order-independent canonical form of the query.
//
// The form is a fixed sequence of k=v pairs joined by '&' with id sets
// sorted and comma-joined, e.g.:
//
//	vt=40&ego=alice&lw=0.50&ed=0.25&budget=100&exp=a,b&col=c&focus=
//
// Callers do not need to call Normalize first; Canonical normalizes a copy.
func (q ViewQuery) Canonical() string {
	q.Normalize()
	var b strings.Builder
	b.Grow(96)
	b.WriteString("vt=")
	b.WriteString(strconv.Itoa(q.VisibleTarget))
	b.WriteString("&ego=")
	b.WriteString(q.Ego)
	fmt.Fprintf(&b, "&lw=%.2f&ed=%.2f", q.LouvainWeight, q.ExpandDepth)
	b.WriteString("&budget=")
	b.WriteString(strconv.Itoa(q.Budget))
	b.WriteString("&exp=")
	b.WriteString(strings.Join(q.Expanded, ","))
	b.WriteString("&col=")
	b.WriteString(strings.Join(q.Collapsed, ","))
	b.WriteString("&focus=")
	b.WriteString(q.FocusLeaf)
	return b.String()
}

// Key returns the xxhash digest of the canonical form, hex-encoded.
func (q ViewQuery) Key() Key {
	return Key(fmt.Sprintf("%016x", xxhash.Sum64String(q.Canonical())))
}

// Values returns the query serialized as URL parameters for the fetch
// layer. Field names match the backend contract; empty optional fields
// are omitted.
func (q ViewQuery) Values() url.Values {
	q.Normalize()
	v := url.Values{}
	v.Set("visible", strconv.Itoa(q.VisibleTarget))
	if q.Ego != "" {
		v.Set("ego", q.Ego)
	}
	v.Set("louvain_weight", fmt.Sprintf("%.2f", q.LouvainWeight))
	v.Set("expand_depth", fmt.Sprintf("%.2f", q.ExpandDepth))
	v.Set("budget", strconv.Itoa(q.Budget))
	if len(q.Expanded) > 0 {
		v.Set("expanded", strings.Join(q.Expanded, ","))
	}
	if len(q.Collapsed) > 0 {
		v.Set("collapsed", strings.Join(q.Collapsed, ","))
	}
	if q.FocusLeaf != "" {
		v.Set("focus_leaf", q.FocusLeaf)
	}
	return v
}

// clamp01 clamps v to [0, 1]. NaN clamps to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// sortedUnique returns a sorted copy of ids with duplicates and empty
// strings removed.
func sortedUnique(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
