// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package clusterd is a self-contained cluster backend for local
// development and integration testing. It serves a deterministic,
// seed-generated community hierarchy over the explorer's fetch contract.
//
// Cluster ids are stable for a given seed. Raw positions are re-derived
// per request with a query-dependent global rotation and scale, which
// mimics independent force-layout runs and gives the client's alignment
// pass something real to correct.
package clusterd

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Hierarchy generation shape.
const (
	defaultBranching = 4
	defaultDepth     = 4
	minLeafSize      = 5
	maxLeafSize      = 60
)

type node struct {
	id       string
	parentID string
	children []string
	size     int
	depth    int
	label    string
}

// Hierarchy is a fixed community tree generated from a seed.
//
// Thread Safety: immutable after construction; safe for concurrent use.
type Hierarchy struct {
	seed   int64
	nodes  map[string]*node
	rootID string
}

// GenerateHierarchy builds the deterministic community tree for a seed.
func GenerateHierarchy(seed int64) *Hierarchy {
	h := &Hierarchy{
		seed:   seed,
		nodes:  make(map[string]*node),
		rootID: "c0",
	}
	h.grow(h.rootID, "", 0, rand.New(rand.NewSource(seed)))
	return h
}

// grow builds the subtree rooted at id and returns its member count.
func (h *Hierarchy) grow(id, parentID string, depth int, rng *rand.Rand) int {
	n := &node{id: id, parentID: parentID, depth: depth}
	h.nodes[id] = n

	if depth >= defaultDepth {
		n.size = minLeafSize + rng.Intn(maxLeafSize-minLeafSize)
		n.label = fmt.Sprintf("community %s", id)
		return n.size
	}

	kids := 2 + rng.Intn(defaultBranching-1)
	total := 0
	for i := 0; i < kids; i++ {
		childID := fmt.Sprintf("%s.%d", id, i)
		total += h.grow(childID, id, depth+1, rng)
		n.children = append(n.children, childID)
	}
	n.size = total
	n.label = fmt.Sprintf("region %s", id)
	return total
}

// CutParams selects a visible slice of the hierarchy.
type CutParams struct {
	VisibleTarget int
	Budget        int
	Expanded      map[string]bool
	Collapsed     map[string]bool
}

// Cut computes the visible frontier for the given parameters.
//
// Description:
//
//	Starts from the root and repeatedly replaces a frontier node with its
//	children: first every explicitly expanded node (bounded by budget),
//	then largest-first until the visible target is reached. Explicitly
//	collapsed nodes are never split. The result is sorted by id so the
//	frontier is stable for identical parameters.
func (h *Hierarchy) Cut(p CutParams) []string {
	target := p.VisibleTarget
	if p.Budget > 0 && target > p.Budget {
		target = p.Budget
	}

	frontier := map[string]bool{h.rootID: true}

	split := func(id string) bool {
		n := h.nodes[id]
		if n == nil || len(n.children) == 0 || p.Collapsed[id] {
			return false
		}
		next := len(frontier) + len(n.children) - 1
		if p.Budget > 0 && next > p.Budget {
			return false
		}
		delete(frontier, id)
		for _, c := range n.children {
			frontier[c] = true
		}
		return true
	}

	for {
		// Forced expansions win over the size heuristic, and are re-checked
		// whenever growth brings a newly visible id into the frontier.
		forced := false
		for _, id := range sortedIDs(frontier) {
			if p.Expanded[id] && split(id) {
				forced = true
			}
		}
		if forced {
			continue
		}
		if len(frontier) >= target {
			break
		}

		best := ""
		bestSize := -1
		for id := range frontier {
			n := h.nodes[id]
			if len(n.children) == 0 || p.Collapsed[id] {
				continue
			}
			if n.size > bestSize || (n.size == bestSize && id < best) {
				best, bestSize = id, n.size
			}
		}
		if best == "" || !split(best) {
			break
		}
	}
	return sortedIDs(frontier)
}

// Positions returns raw layout coordinates for the given ids, with a
// global rotation and scale derived from variant. Different variants
// represent independent layout runs of the same communities: relative
// geometry is preserved, global orientation is not.
func (h *Hierarchy) Positions(ids []string, variant string) map[string][2]float64 {
	v := xxhash.Sum64String(variant)
	angle := float64(v%3600) / 3600 * 2 * math.Pi
	scale := 0.75 + float64((v/3600)%100)/200
	cos, sin := math.Cos(angle), math.Sin(angle)

	out := make(map[string][2]float64, len(ids))
	for _, id := range ids {
		x, y := h.intrinsicPosition(id)
		out[id] = [2]float64{
			scale * (cos*x - sin*y),
			scale * (sin*x + cos*y),
		}
	}
	return out
}

// intrinsicPosition is the node's stable position in layout space:
// children scatter around their parent with shrinking spread per level.
func (h *Hierarchy) intrinsicPosition(id string) (float64, float64) {
	n := h.nodes[id]
	if n == nil {
		return 0, 0
	}
	var px, py float64
	if n.parentID != "" {
		px, py = h.intrinsicPosition(n.parentID)
	}
	rng := rand.New(rand.NewSource(h.seed ^ int64(xxhash.Sum64String(id))))
	spread := 40.0 / math.Pow(2.5, float64(n.depth))
	return px + (rng.Float64()*2-1)*spread, py + (rng.Float64()*2-1)*spread
}

// Edges links visible clusters that share a parent, with deterministic
// weights.
func (h *Hierarchy) Edges(ids []string) []edgeOut {
	var edges []edgeOut
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := h.nodes[ids[i]], h.nodes[ids[j]]
			if a == nil || b == nil || a.parentID != b.parentID {
				continue
			}
			w := float64(xxhash.Sum64String(a.id+"|"+b.id)%1000) / 1000
			edges = append(edges, edgeOut{Source: a.id, Target: b.id, Weight: w})
		}
	}
	return edges
}

// Node returns the cluster-facing view of one node.
func (h *Hierarchy) Node(id string) (clusterOut, bool) {
	n, ok := h.nodes[id]
	if !ok {
		return clusterOut{}, false
	}
	return clusterOut{
		ID:          n.id,
		Size:        n.size,
		IsLeaf:      len(n.children) == 0,
		ParentID:    n.parentID,
		ChildrenIDs: append([]string(nil), n.children...),
		Label:       n.label,
	}, true
}

func sortedIDs(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
