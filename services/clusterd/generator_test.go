// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package clusterd

import (
	"math"
	"math/rand"
	"testing"
)

func TestGenerateHierarchy_Deterministic(t *testing.T) {
	a := GenerateHierarchy(99)
	b := GenerateHierarchy(99)
	if len(a.nodes) != len(b.nodes) {
		t.Fatalf("node counts differ: %d vs %d", len(a.nodes), len(b.nodes))
	}
	for id, n := range a.nodes {
		m, ok := b.nodes[id]
		if !ok || n.size != m.size || len(n.children) != len(m.children) {
			t.Fatalf("node %s differs across identical seeds", id)
		}
	}
}

func TestCut_NeverExceedsBudget(t *testing.T) {
	h := GenerateHierarchy(5)
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		budget := 1 + rng.Intn(60)
		cut := h.Cut(CutParams{
			VisibleTarget: 1 + rng.Intn(200),
			Budget:        budget,
		})
		if len(cut) > budget {
			t.Fatalf("cut of %d exceeds budget %d", len(cut), budget)
		}
	}
}

func TestCut_CollapsedNodeStaysWhole(t *testing.T) {
	h := GenerateHierarchy(5)
	base := h.Cut(CutParams{VisibleTarget: 6, Budget: 100})

	var internal string
	for _, id := range base {
		if len(h.nodes[id].children) > 0 {
			internal = id
			break
		}
	}
	if internal == "" {
		t.Skip("no internal node in baseline cut")
	}

	cut := h.Cut(CutParams{
		VisibleTarget: 50,
		Budget:        100,
		Collapsed:     map[string]bool{internal: true},
	})
	for _, id := range cut {
		n := h.nodes[id]
		for n.parentID != "" {
			if n.parentID == internal {
				t.Fatalf("descendant %s of collapsed %s is visible", id, internal)
			}
			n = h.nodes[n.parentID]
		}
	}
}

func TestPositions_RigidAcrossVariants(t *testing.T) {
	h := GenerateHierarchy(5)
	ids := h.Cut(CutParams{VisibleTarget: 10, Budget: 100})
	if len(ids) < 3 {
		t.Fatalf("cut too small: %d", len(ids))
	}

	a := h.Positions(ids, "variant-one")
	b := h.Positions(ids, "variant-two")

	dist := func(p map[string][2]float64, i, j int) float64 {
		return math.Hypot(p[ids[i]][0]-p[ids[j]][0], p[ids[i]][1]-p[ids[j]][1])
	}
	// Distance ratios are invariant under rotation plus uniform scale.
	refA, refB := dist(a, 0, 1), dist(b, 0, 1)
	if refA == 0 || refB == 0 {
		t.Fatal("degenerate reference pair")
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			ra := dist(a, i, j) / refA
			rb := dist(b, i, j) / refB
			if math.Abs(ra-rb) > 1e-9 {
				t.Fatalf("pair (%s,%s) ratio %v vs %v: transform is not rigid",
					ids[i], ids[j], ra, rb)
			}
		}
	}
}
