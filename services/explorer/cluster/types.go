// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cluster defines the backend contract for the hierarchical
// cluster explorer and an HTTP client implementing it with caching,
// retry, and request deduplication.
package cluster

import (
	"github.com/AleutianAI/constellation/services/explorer/layout"
)

// Cluster is one visible community in the hierarchy cut.
//
// Ids are stable across calls with overlapping parameters; alignment and
// expand/collapse bookkeeping both depend on that stability.
type Cluster struct {
	ID                    string   `json:"id"`
	Size                  int      `json:"size"`
	IsLeaf                bool     `json:"isLeaf"`
	ParentID              string   `json:"parentId,omitempty"`
	ChildrenIDs           []string `json:"childrenIds,omitempty"`
	RepresentativeHandles []string `json:"representativeHandles,omitempty"`
	Label                 string   `json:"label,omitempty"`
}

// Edge is an aggregated inter-cluster connection.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// Meta carries response metadata.
type Meta struct {
	BudgetRemaining int `json:"budget_remaining"`
}

// FetchResult is one complete backend response for a view query.
type FetchResult struct {
	Clusters []Cluster `json:"clusters"`

	// Positions maps cluster id to [x, y] in the backend-normalized
	// coordinate space.
	Positions map[string][2]float64 `json:"positions"`

	Edges []Edge `json:"edges"`
	Meta  Meta   `json:"meta"`
}

// Empty reports whether the response contains no clusters.
func (r *FetchResult) Empty() bool {
	return r == nil || len(r.Clusters) == 0
}

// PositionMap converts the wire positions into the layout representation.
func (r *FetchResult) PositionMap() layout.PositionMap {
	out := make(layout.PositionMap, len(r.Positions))
	for id, xy := range r.Positions {
		out[id] = layout.Point{X: xy[0], Y: xy[1]}
	}
	return out
}

// ByID returns the cluster with the given id, if present.
func (r *FetchResult) ByID(id string) (Cluster, bool) {
	for _, c := range r.Clusters {
		if c.ID == id {
			return c, true
		}
	}
	return Cluster{}, false
}
