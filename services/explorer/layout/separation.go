// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import "math"

// Separation defaults.
const (
	// DefaultSeparationPasses is the fixed number of relaxation passes.
	DefaultSeparationPasses = 50

	// DefaultSeparationDamping limits per-pass correction to prevent
	// oscillation.
	DefaultSeparationDamping = 0.5

	// coincidentFloor is the nonzero floor distance substituted for
	// coincident points before computing a direction.
	coincidentFloor = 1e-6
)

// Circle is a node footprint for the declutter pass.
type Circle struct {
	ID     string
	X, Y   float64
	Radius float64
}

// SeparationConfig configures the pairwise-repulsion declutter pass.
type SeparationConfig struct {
	// Passes is the number of relaxation passes. Default: 50.
	Passes int

	// Margin is added on top of the two radii for the minimum separation.
	Margin float64

	// MinDistance is an absolute floor on pair separation, independent of
	// radii.
	MinDistance float64

	// Damping scales each correction. Default: 0.5.
	Damping float64
}

// DefaultSeparationConfig returns the standard declutter settings.
func DefaultSeparationConfig() SeparationConfig {
	return SeparationConfig{
		Passes:  DefaultSeparationPasses,
		Damping: DefaultSeparationDamping,
	}
}

// Separate declutters overlapping node footprints.
//
// Description:
//
//	Runs a fixed number of relaxation passes. Each pass visits every
//	unordered pair once; a pair closer than
//	max(MinDistance, r_i+r_j+Margin) receives an equal-and-opposite
//	correction along the inter-center direction, proportional to the
//	penetration depth and damped to prevent oscillation. Coincident
//	points are nudged apart along a fixed axis via a nonzero floor
//	distance.
//
//	Cost is O(passes * n^2), acceptable because the visible node count is
//	bounded by the view budget. The pass is purely cosmetic and must not
//	feed back into the stored previous-position reference used by Align.
//
// The input slice is not mutated; adjusted circles are returned.
func Separate(nodes []Circle, cfg SeparationConfig) []Circle {
	if cfg.Passes <= 0 {
		cfg.Passes = DefaultSeparationPasses
	}
	if cfg.Damping <= 0 {
		cfg.Damping = DefaultSeparationDamping
	}

	out := make([]Circle, len(nodes))
	copy(out, nodes)
	if len(out) < 2 {
		return out
	}

	for pass := 0; pass < cfg.Passes; pass++ {
		moved := false
		for i := 0; i < len(out); i++ {
			for j := i + 1; j < len(out); j++ {
				required := out[i].Radius + out[j].Radius + cfg.Margin
				if cfg.MinDistance > required {
					required = cfg.MinDistance
				}

				dx := out[j].X - out[i].X
				dy := out[j].Y - out[i].Y
				dist := math.Hypot(dx, dy)
				if dist < coincidentFloor {
					dist = coincidentFloor
					dx, dy = dist, 0
				}
				if dist >= required {
					continue
				}

				push := (required - dist) * cfg.Damping / 2
				ux, uy := dx/dist, dy/dist
				out[i].X -= ux * push
				out[i].Y -= uy * push
				out[j].X += ux * push
				out[j].Y += uy * push
				moved = true
			}
		}
		if !moved {
			break
		}
	}
	return out
}
