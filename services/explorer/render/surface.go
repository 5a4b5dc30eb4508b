// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package render maps world-space node positions onto a pannable,
// zoomable screen viewport and answers pointer queries against it.
package render

import (
	"math"
	"sync"

	"github.com/AleutianAI/constellation/services/explorer/layout"
)

// Viewport limits and interaction constants.
const (
	// MinScale and MaxScale bound geometric zoom.
	MinScale = 0.05
	MaxScale = 40.0

	// FitFactor leaves breathing room around the content on auto-fit.
	FitFactor = 0.85

	// HitPadding widens every node's pointer target by a few pixels.
	HitPadding = 4.0

	// wheelNotch is the deltaY magnitude of one detent on a standard
	// scroll wheel.
	wheelNotch = 120.0

	// wheelZoomStep is the geometric zoom factor per detent.
	wheelZoomStep = 1.1
)

// Surface is the screen viewport.
//
// Description:
//
//	Holds the world-to-screen transform (uniform scale plus offset) for a
//	pixel viewport. Panning and modifier-held wheel input mutate the
//	transform directly; plain wheel input is interpreted as a semantic
//	granularity request and surfaced to the caller instead of changing
//	the transform, so detail level and magnification stay independent.
//
// Thread Safety: safe for concurrent use.
type Surface struct {
	mu      sync.Mutex
	width   float64
	height  float64
	scale   float64
	offsetX float64
	offsetY float64
}

// NewSurface creates a Surface for a viewport of the given pixel size
// with the identity transform.
func NewSurface(width, height float64) *Surface {
	return &Surface{width: width, height: height, scale: 1}
}

// Resize updates the viewport size, keeping the world point at the old
// viewport center fixed at the new center.
func (s *Surface) Resize(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsetX += (width - s.width) / 2
	s.offsetY += (height - s.height) / 2
	s.width, s.height = width, height
}

// Scale returns the current world-to-screen scale.
func (s *Surface) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// Pan shifts the viewport by a screen-space delta.
func (s *Surface) Pan(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsetX += dx
	s.offsetY += dy
}

// ZoomAt multiplies the scale by factor, keeping the world point under
// the screen anchor (sx, sy) stationary. The scale is clamped to
// [MinScale, MaxScale].
func (s *Surface) ZoomAt(factor, sx, sy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoomAtLocked(factor, sx, sy)
}

func (s *Surface) zoomAtLocked(factor, sx, sy float64) {
	next := s.scale * factor
	if next < MinScale {
		next = MinScale
	}
	if next > MaxScale {
		next = MaxScale
	}
	applied := next / s.scale
	// Anchor point invariant: world(sx,sy) is the same before and after.
	s.offsetX = sx - (sx-s.offsetX)*applied
	s.offsetY = sy - (sy-s.offsetY)*applied
	s.scale = next
}

// Wheel routes a scroll-wheel event.
//
// With the modifier held the wheel zooms geometrically around the
// pointer and 0 is returned. Without the modifier the event is a
// semantic granularity request: the transform is untouched and the
// returned delta is +1 per detent scrolled up (finer detail) or -1 per
// detent scrolled down (coarser).
func (s *Surface) Wheel(deltaY float64, modifier bool, sx, sy float64) int {
	if modifier {
		s.ZoomAt(math.Pow(wheelZoomStep, -deltaY/wheelNotch), sx, sy)
		return 0
	}
	return -int(math.Round(deltaY / wheelNotch))
}

// ToScreen converts a world point to screen coordinates.
func (s *Surface) ToScreen(p layout.Point) layout.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return layout.Point{X: p.X*s.scale + s.offsetX, Y: p.Y*s.scale + s.offsetY}
}

// ToWorld converts a screen point to world coordinates.
func (s *Surface) ToWorld(p layout.Point) layout.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return layout.Point{X: (p.X - s.offsetX) / s.scale, Y: (p.Y - s.offsetY) / s.scale}
}

// HitTest returns the id of the node nearest to the screen point
// (sx, sy) whose padded screen-space footprint contains it. Ties between
// overlapping footprints resolve to the smallest center distance. The
// second return is false when no node is hit.
func (s *Surface) HitTest(nodes []layout.Circle, sx, sy float64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bestID := ""
	bestDist := math.Inf(1)
	for _, n := range nodes {
		cx := n.X*s.scale + s.offsetX
		cy := n.Y*s.scale + s.offsetY
		d := math.Hypot(sx-cx, sy-cy)
		if d <= n.Radius*s.scale+HitPadding && d < bestDist {
			bestID, bestDist = n.ID, d
		}
	}
	return bestID, bestID != ""
}

// AutoFit sets the transform so every node footprint fits inside the
// viewport, scaled down by FitFactor and centered. Empty input resets to
// the identity transform centered on the origin.
func (s *Surface) AutoFit(nodes []layout.Circle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(nodes) == 0 {
		s.scale = 1
		s.offsetX = s.width / 2
		s.offsetY = s.height / 2
		return
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		minX = math.Min(minX, n.X-n.Radius)
		minY = math.Min(minY, n.Y-n.Radius)
		maxX = math.Max(maxX, n.X+n.Radius)
		maxY = math.Max(maxY, n.Y+n.Radius)
	}

	w, h := maxX-minX, maxY-minY
	scale := MaxScale
	if w > 0 {
		scale = math.Min(scale, s.width/w*FitFactor)
	}
	if h > 0 {
		scale = math.Min(scale, s.height/h*FitFactor)
	}
	if scale < MinScale {
		scale = MinScale
	}
	s.scale = scale

	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	s.offsetX = s.width/2 - cx*scale
	s.offsetY = s.height/2 - cy*scale
}
