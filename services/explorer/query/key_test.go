// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"math"
	"testing"
)

func TestKey_OrderIndependent(t *testing.T) {
	a := ViewQuery{
		VisibleTarget: 40,
		Ego:           "alice",
		LouvainWeight: 0.5,
		ExpandDepth:   0.25,
		Budget:        100,
		Expanded:      []string{"c2", "c1", "c3"},
		Collapsed:     []string{"c9", "c8"},
	}
	b := ViewQuery{
		VisibleTarget: 40,
		Ego:           "alice",
		LouvainWeight: 0.5,
		ExpandDepth:   0.25,
		Budget:        100,
		Expanded:      []string{"c3", "c1", "c2", "c1"},
		Collapsed:     []string{"c8", "c9"},
	}
	if a.Key() != b.Key() {
		t.Errorf("keys differ for logically identical queries: %s vs %s", a.Key(), b.Key())
	}
	if a.Canonical() != b.Canonical() {
		t.Errorf("canonical forms differ:\n%s\n%s", a.Canonical(), b.Canonical())
	}
}

func TestKey_DistinctQueries(t *testing.T) {
	a := ViewQuery{VisibleTarget: 40, Budget: 100}
	b := ViewQuery{VisibleTarget: 41, Budget: 100}
	if a.Key() == b.Key() {
		t.Error("distinct queries produced identical keys")
	}
}

func TestCanonical_FloatPrecision(t *testing.T) {
	// Values that differ only past the second decimal must collapse to the
	// same canonical form.
	a := ViewQuery{LouvainWeight: 0.500001, ExpandDepth: 0.250004}
	b := ViewQuery{LouvainWeight: 0.5, ExpandDepth: 0.25}
	if a.Canonical() != b.Canonical() {
		t.Errorf("two-decimal precision not applied:\n%s\n%s", a.Canonical(), b.Canonical())
	}
}

func TestNormalize_Clamping(t *testing.T) {
	tests := []struct {
		name    string
		in      float64
		want    float64
	}{
		{"negative clamps to zero", -0.5, 0},
		{"above one clamps to one", 1.7, 1},
		{"nan clamps to zero", math.NaN(), 0},
		{"in range unchanged", 0.42, 0.42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ViewQuery{LouvainWeight: tt.in}
			q.Normalize()
			if q.LouvainWeight != tt.want {
				t.Errorf("LouvainWeight = %v, want %v", q.LouvainWeight, tt.want)
			}
		})
	}
}

func TestValues_OmitsEmptyOptionals(t *testing.T) {
	q := ViewQuery{VisibleTarget: 20, Budget: 50}
	v := q.Values()
	if v.Has("ego") || v.Has("expanded") || v.Has("collapsed") || v.Has("focus_leaf") {
		t.Errorf("empty optional parameters serialized: %v", v)
	}
	if v.Get("louvain_weight") != "0.00" {
		t.Errorf("louvain_weight = %q, want %q", v.Get("louvain_weight"), "0.00")
	}
}

func TestSortedUnique_DropsEmpties(t *testing.T) {
	q := ViewQuery{Expanded: []string{"", "b", "a", "b", ""}}
	q.Normalize()
	if len(q.Expanded) != 2 || q.Expanded[0] != "a" || q.Expanded[1] != "b" {
		t.Errorf("Expanded = %v, want [a b]", q.Expanded)
	}
}
