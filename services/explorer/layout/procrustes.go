// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layout keeps the visualization spatially stable across
// independently recomputed position sets.
//
// Each fetch recomputes a force/embedding layout from scratch; without
// correction an unrelated global rotation, scale, and translation makes
// the view appear to jump even when most clusters are unchanged. Align
// solves the 2D rigid+uniform-scale (Procrustes) transform on the ids
// present in both the previous and current maps, then applies it to every
// current id so newly appeared clusters inherit the stable frame.
//
// The 2x2 case has a closed form via polar decomposition; no general
// linear-algebra dependency is needed.
package layout

import (
	"math"
	"sort"
)

// epsDenominator guards every division against near-zero denominators.
const epsDenominator = 1e-10

// Derived-scale ratios outside this range flag the alignment as anomalous
// (likely an unreliable overlap set). The result is still applied.
const (
	anomalyScaleMin = 0.01
	anomalyScaleMax = 100.0
)

// Point is a 2D position in the backend-normalized coordinate space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PositionMap maps cluster id to its position for one fetch response.
type PositionMap map[string]Point

// Clone returns a shallow copy.
func (m PositionMap) Clone() PositionMap {
	out := make(PositionMap, len(m))
	for id, p := range m {
		out[id] = p
	}
	return out
}

// Transform is the rigid+scale alignment derived for one Align call.
// Ephemeral; never persisted.
type Transform struct {
	MeanPrev Point
	MeanCur  Point
	ScaleCur float64
	Scale    float64 // scalePrev * singularTrace / scaleCur
	Rotation [2][2]float64
}

// Apply maps a current-frame point into the previous (stable) frame.
func (t Transform) Apply(p Point) Point {
	vx := p.X - t.MeanCur.X
	vy := p.Y - t.MeanCur.Y
	rx := t.Rotation[0][0]*vx + t.Rotation[0][1]*vy
	ry := t.Rotation[1][0]*vx + t.Rotation[1][1]*vy
	return Point{
		X: t.MeanPrev.X + t.Scale*rx,
		Y: t.MeanPrev.Y + t.Scale*ry,
	}
}

// AlignStats reports alignment diagnostics, also used as a regression
// signal in tests.
type AlignStats struct {
	// Aligned is false when fewer than two overlap points constrained the
	// transform and the input was returned unchanged.
	Aligned bool

	// Overlap is the number of ids present in both maps.
	Overlap int

	// RMSBefore and RMSAfter are root-mean-square point-to-point distances
	// between previous and (unaligned/aligned) current on the overlap set.
	RMSBefore float64
	RMSAfter  float64

	// Scale is the overall derived scale factor.
	Scale float64

	// Anomalous flags a derived scale outside the plausible range.
	Anomalous bool
}

// Align rigidly maps current onto the frame of previous.
//
// Description:
//
//	Computes the overlap set (ids in both maps), solves the 2D
//	rotation+uniform-scale+translation minimizing point-to-point distance
//	on it, and applies the transform to every id in current. Two points
//	are the minimum needed to constrain the transform; below that the
//	input is returned unchanged with Aligned=false.
//
//	Degenerate geometry (coincident overlap points, vanishing rotation
//	denominator) falls back to identity rather than corrupting the
//	render, and any non-finite output coordinate is replaced by the
//	untransformed input coordinate for that id. Align never fails.
//
// Outputs:
//   - PositionMap: adjusted positions for every id in current.
//   - AlignStats: overlap size, before/after RMS, derived scale, flags.
func Align(current, previous PositionMap) (PositionMap, AlignStats) {
	overlap := overlapIDs(current, previous)
	stats := AlignStats{Overlap: len(overlap)}
	if len(overlap) < 2 {
		return current.Clone(), stats
	}

	t, ok := estimateRigidTransform(overlap, current, previous)
	stats.RMSBefore = rmsDistance(overlap, current, previous)
	if !ok {
		return current.Clone(), stats
	}

	adjusted := make(PositionMap, len(current))
	for id, p := range current {
		q := t.Apply(p)
		if !isFinite(q) {
			q = p
		}
		adjusted[id] = q
	}

	stats.Aligned = true
	stats.Scale = t.Scale
	stats.Anomalous = t.Scale < anomalyScaleMin || t.Scale > anomalyScaleMax
	stats.RMSAfter = rmsDistance(overlap, adjusted, previous)
	return adjusted, stats
}

// estimateRigidTransform solves the closed-form 2D Procrustes problem on
// the overlap set. Returns ok=false when the geometry is too degenerate
// to constrain a transform.
func estimateRigidTransform(overlap []string, current, previous PositionMap) (Transform, bool) {
	n := float64(len(overlap))

	var meanCur, meanPrev Point
	for _, id := range overlap {
		c, p := current[id], previous[id]
		meanCur.X += c.X
		meanCur.Y += c.Y
		meanPrev.X += p.X
		meanPrev.Y += p.Y
	}
	meanCur.X /= n
	meanCur.Y /= n
	meanPrev.X /= n
	meanPrev.Y /= n

	// Unit-scale normalization: RMS distance from the centroid.
	var sumCur, sumPrev float64
	for _, id := range overlap {
		c, p := current[id], previous[id]
		sumCur += sq(c.X-meanCur.X) + sq(c.Y-meanCur.Y)
		sumPrev += sq(p.X-meanPrev.X) + sq(p.Y-meanPrev.Y)
	}
	scaleCur := math.Sqrt(sumCur / n)
	scalePrev := math.Sqrt(sumPrev / n)
	if scaleCur < epsDenominator || scalePrev < epsDenominator {
		return Transform{}, false
	}

	// Cross-covariance between the normalized, centered overlap
	// coordinates of previous (A) and current (B): M[j][k] = E[A_j * B_k].
	var m00, m01, m10, m11 float64
	for _, id := range overlap {
		c, p := current[id], previous[id]
		ax := (p.X - meanPrev.X) / scalePrev
		ay := (p.Y - meanPrev.Y) / scalePrev
		bx := (c.X - meanCur.X) / scaleCur
		by := (c.Y - meanCur.Y) / scaleCur
		m00 += ax * bx
		m01 += ax * by
		m10 += ay * bx
		m11 += ay * by
	}
	m00 /= n
	m01 /= n
	m10 /= n
	m11 /= n

	// Closed-form polar decomposition. The rotation derives from
	// (M00+M11, M10-M01) normalized to unit length; the sign of the
	// determinant fixes orientation (reflection vs. proper rotation).
	e := m00 + m11
	f := m10 - m01
	g := m00 - m11
	h := m01 + m10
	rotDen := math.Hypot(e, f)

	cos, sin := 1.0, 0.0
	if rotDen >= epsDenominator {
		cos = e / rotDen
		sin = f / rotDen
	}

	det := m00*m11 - m01*m10
	sv1 := (math.Hypot(e, f) + math.Hypot(g, h)) / 2
	sv2 := (math.Hypot(e, f) - math.Hypot(g, h)) / 2
	trace := sv1 + sv2
	if det < 0 {
		trace = sv1 - sv2
	}

	return Transform{
		MeanPrev: meanPrev,
		MeanCur:  meanCur,
		ScaleCur: scaleCur,
		Scale:    scalePrev * trace / scaleCur,
		Rotation: [2][2]float64{{cos, -sin}, {sin, cos}},
	}, true
}

// overlapIDs returns ids present in both maps, sorted so the computation
// is invariant to map iteration order.
func overlapIDs(current, previous PositionMap) []string {
	ids := make([]string, 0, len(current))
	for id := range current {
		if _, ok := previous[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// rmsDistance is the root-mean-square point-to-point distance between the
// two maps over ids.
func rmsDistance(ids []string, a, b PositionMap) float64 {
	if len(ids) == 0 {
		return 0
	}
	var sum float64
	for _, id := range ids {
		pa, pb := a[id], b[id]
		sum += sq(pa.X-pb.X) + sq(pa.Y-pb.Y)
	}
	return math.Sqrt(sum / float64(len(ids)))
}

func sq(v float64) float64 { return v * v }

func isFinite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
