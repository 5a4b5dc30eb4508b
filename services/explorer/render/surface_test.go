// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package render

import (
	"math"
	"testing"

	"github.com/AleutianAI/constellation/services/explorer/layout"
)

func TestSurface_RoundTripScreenWorld(t *testing.T) {
	s := NewSurface(800, 600)
	s.Pan(120, -40)
	s.ZoomAt(2.5, 400, 300)

	world := layout.Point{X: 3.7, Y: -9.2}
	back := s.ToWorld(s.ToScreen(world))
	if math.Abs(back.X-world.X) > 1e-9 || math.Abs(back.Y-world.Y) > 1e-9 {
		t.Errorf("round trip moved point: %v -> %v", world, back)
	}
}

func TestSurface_ZoomKeepsAnchorFixed(t *testing.T) {
	s := NewSurface(800, 600)
	s.Pan(100, 50)

	anchor := layout.Point{X: 250, Y: 130}
	before := s.ToWorld(anchor)
	s.ZoomAt(3, anchor.X, anchor.Y)
	after := s.ToWorld(anchor)

	if math.Abs(before.X-after.X) > 1e-9 || math.Abs(before.Y-after.Y) > 1e-9 {
		t.Errorf("anchor drifted during zoom: %v -> %v", before, after)
	}
	if got := s.Scale(); math.Abs(got-3) > 1e-9 {
		t.Errorf("scale = %v, want 3", got)
	}
}

func TestSurface_ZoomClampedToBounds(t *testing.T) {
	s := NewSurface(800, 600)
	s.ZoomAt(1e9, 0, 0)
	if got := s.Scale(); got != MaxScale {
		t.Errorf("scale = %v, want clamp at %v", got, MaxScale)
	}
	s.ZoomAt(1e-12, 0, 0)
	if got := s.Scale(); got != MinScale {
		t.Errorf("scale = %v, want clamp at %v", got, MinScale)
	}
}

func TestSurface_WheelRouting(t *testing.T) {
	tests := []struct {
		name      string
		deltaY    float64
		modifier  bool
		wantDelta int
		wantZoom  bool
	}{
		{name: "plain wheel up requests finer detail", deltaY: -120, wantDelta: 1},
		{name: "plain wheel down requests coarser detail", deltaY: 120, wantDelta: -1},
		{name: "fast scroll accumulates", deltaY: -360, wantDelta: 3},
		{name: "modifier wheel zooms geometrically", deltaY: -120, modifier: true, wantZoom: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSurface(800, 600)
			got := s.Wheel(tt.deltaY, tt.modifier, 400, 300)
			if got != tt.wantDelta {
				t.Errorf("granularity delta = %d, want %d", got, tt.wantDelta)
			}
			zoomed := s.Scale() != 1
			if zoomed != tt.wantZoom {
				t.Errorf("scale changed = %v, want %v", zoomed, tt.wantZoom)
			}
		})
	}
}

func TestSurface_HitTestNearestWins(t *testing.T) {
	s := NewSurface(800, 600)
	nodes := []layout.Circle{
		{ID: "far", X: 100, Y: 100, Radius: 10},
		{ID: "near", X: 103, Y: 100, Radius: 10},
	}

	id, ok := s.HitTest(nodes, 104, 100)
	if !ok || id != "near" {
		t.Errorf("HitTest = (%q, %v), want (near, true)", id, ok)
	}

	if id, ok := s.HitTest(nodes, 500, 500); ok {
		t.Errorf("HitTest in empty space = (%q, true), want miss", id)
	}
}

func TestSurface_HitTestHonorsPaddingAndScale(t *testing.T) {
	s := NewSurface(800, 600)
	s.ZoomAt(2, 0, 0)
	nodes := []layout.Circle{{ID: "n", X: 50, Y: 50, Radius: 5}}

	// Screen center is (100,100), screen radius 10 plus padding.
	if _, ok := s.HitTest(nodes, 100+10+HitPadding-0.5, 100); !ok {
		t.Error("point just inside padded footprint missed")
	}
	if _, ok := s.HitTest(nodes, 100+10+HitPadding+0.5, 100); ok {
		t.Error("point just outside padded footprint hit")
	}
}

func TestSurface_AutoFitContainsAllNodes(t *testing.T) {
	s := NewSurface(800, 600)
	nodes := []layout.Circle{
		{ID: "a", X: -40, Y: -10, Radius: 3},
		{ID: "b", X: 55, Y: 22, Radius: 8},
		{ID: "c", X: 10, Y: -35, Radius: 1},
	}
	s.AutoFit(nodes)

	for _, n := range nodes {
		c := s.ToScreen(layout.Point{X: n.X, Y: n.Y})
		r := n.Radius * s.Scale()
		if c.X-r < 0 || c.X+r > 800 || c.Y-r < 0 || c.Y+r > 600 {
			t.Errorf("node %s extends outside viewport: center %v radius %v", n.ID, c, r)
		}
	}
}

func TestSurface_AutoFitCentersContent(t *testing.T) {
	s := NewSurface(800, 600)
	nodes := []layout.Circle{
		{ID: "a", X: 0, Y: 0, Radius: 1},
		{ID: "b", X: 10, Y: 10, Radius: 1},
	}
	s.AutoFit(nodes)

	center := s.ToScreen(layout.Point{X: 5, Y: 5})
	if math.Abs(center.X-400) > 1e-6 || math.Abs(center.Y-300) > 1e-6 {
		t.Errorf("content center at %v, want viewport center (400, 300)", center)
	}
}

func TestSurface_AutoFitEmptyResetsToCenter(t *testing.T) {
	s := NewSurface(800, 600)
	s.Pan(999, 999)
	s.ZoomAt(7, 0, 0)
	s.AutoFit(nil)

	origin := s.ToScreen(layout.Point{})
	if origin.X != 400 || origin.Y != 300 {
		t.Errorf("origin at %v after empty fit, want (400, 300)", origin)
	}
	if got := s.Scale(); got != 1 {
		t.Errorf("scale = %v, want 1", got)
	}
}
