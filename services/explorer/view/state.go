// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package view

import (
	"math"
	"sort"
	"sync"
)

// Visible-target bounds and derivation constants.
const (
	// MinVisibleTarget is the absolute floor for the visible-count target.
	MinVisibleTarget = 5

	// targetFraction derives the visible target from a new budget.
	targetFraction = 0.45

	// targetFloor is the preferred lower clamp when the budget allows it.
	targetFloor = 8
)

// Cluster is the minimal cluster shape the state machine needs for
// admission decisions.
type Cluster struct {
	ID            string
	ParentID      string
	IsLeaf        bool
	ChildrenCount int
}

// ExpandPreview is a freshly computed admission decision for one cluster.
// It is only valid until the next state transition; committing a stale
// preview fails with ErrStalePreview.
type ExpandPreview struct {
	Cluster Cluster
	epoch   uint64
}

// CollapsePreview carries the resolved parent and sibling ids for a
// collapse, computed by an external preview step.
type CollapsePreview struct {
	ParentID   string
	SiblingIDs []string
}

// State is the expand/collapse/budget state machine.
//
// Description:
//
//	Tracks the explicitly expanded and collapsed cluster id sets, the
//	node budget, the derived visible-count target, and the LIFO expansion
//	stack that supports semantic-zoom undo. The number of currently
//	visible clusters (baseline cut plus the net effect of expansions)
//	never exceeds the budget: every expansion must pass admission control
//	through a fresh preview.
//
// Thread Safety: safe for concurrent use; transitions run to completion
// under one mutex.
type State struct {
	mu            sync.Mutex
	budget        int
	visibleTarget int
	visibleCount  int
	expanded      map[string]bool
	collapsed     map[string]bool
	expanding     map[string]bool
	exploded      map[string]bool
	focusLeaf     string
	stack         []string
	epoch         uint64
}

// New creates a State with the given budget. The visible target is
// derived from the budget the same way SetBudget derives it.
func New(budget int) *State {
	s := &State{
		expanded:  make(map[string]bool),
		collapsed: make(map[string]bool),
		expanding: make(map[string]bool),
		exploded:  make(map[string]bool),
	}
	s.setBudgetLocked(budget)
	return s
}

// Budget returns the current node budget.
func (s *State) Budget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// VisibleTarget returns the current visible-count target.
func (s *State) VisibleTarget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleTarget
}

// VisibleCount returns the cluster count of the last applied fetch.
func (s *State) VisibleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleCount
}

// SetBudget updates the budget and reclamps the visible target to
// round(budget*0.45), clamped to [8, budget-1] when that interval is
// non-empty (to [8, budget] otherwise), and always kept within
// [MinVisibleTarget, budget].
func (s *State) SetBudget(budget int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setBudgetLocked(budget)
	s.epoch++
}

func (s *State) setBudgetLocked(budget int) {
	if budget < MinVisibleTarget {
		budget = MinVisibleTarget
	}
	s.budget = budget

	target := int(math.Round(float64(budget) * targetFraction))
	lo, hi := targetFloor, budget-1
	if hi < lo {
		hi = budget
	}
	if target < lo {
		target = lo
	}
	if target > hi {
		target = hi
	}
	if target < MinVisibleTarget {
		target = MinVisibleTarget
	}
	if target > budget {
		target = budget
	}
	s.visibleTarget = target
}

// SetVisibleTarget clamps and sets the visible target directly.
func (s *State) SetVisibleTarget(target int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if target < MinVisibleTarget {
		target = MinVisibleTarget
	}
	if target > s.budget {
		target = s.budget
	}
	s.visibleTarget = target
	s.epoch++
}

// ApplyFetch records the visible cluster count of an applied response.
// Outstanding previews become stale.
func (s *State) ApplyFetch(visibleClusters int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visibleCount = visibleClusters
	s.epoch++
}

// CanExpand reports whether expanding c is currently admissible.
//
// A leaf is always explodable into its member accounts (a separate,
// non-hierarchical operation that does not change the cluster count). An
// internal cluster needs children and must pass admission: remaining
// budget is positive and the post-expansion count stays within budget
// (the parent leaves the view, its children enter).
func (s *State) CanExpand(c Cluster) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canExpandLocked(c)
}

func (s *State) canExpandLocked(c Cluster) bool {
	if c.IsLeaf {
		return true
	}
	if c.ChildrenCount <= 0 {
		return false
	}
	if s.budget-s.visibleCount <= 0 {
		return false
	}
	return s.visibleCount+c.ChildrenCount-1 <= s.budget
}

// PreviewExpand computes a fresh admission preview for c.
//
// Errors:
//   - ErrAlreadyExpanded: c is already in the expanded set (no-op signal).
//   - ErrExpandInProgress: a previous expansion of c has not settled.
//   - ErrNotExpandable: internal cluster without children.
//   - ErrBudgetExceeded: admission failed against the current visible set.
func (s *State) PreviewExpand(c Cluster) (ExpandPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expanding[c.ID] {
		return ExpandPreview{}, ErrExpandInProgress
	}
	if !c.IsLeaf && s.expanded[c.ID] {
		return ExpandPreview{}, ErrAlreadyExpanded
	}
	if !c.IsLeaf && c.ChildrenCount <= 0 {
		return ExpandPreview{}, ErrNotExpandable
	}
	if !s.canExpandLocked(c) {
		return ExpandPreview{}, ErrBudgetExceeded
	}
	return ExpandPreview{Cluster: c, epoch: s.epoch}, nil
}

// Expand commits a previously computed admission preview.
//
// For a leaf this records member-explosion state instead of mutating the
// hierarchy. For an internal cluster it adds the id to the expanded set,
// removes the id and its parent from the collapsed set, and pushes the id
// onto the expansion stack. Any outstanding previews are invalidated.
func (s *State) Expand(p ExpandPreview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.epoch != s.epoch {
		return ErrStalePreview
	}
	c := p.Cluster
	if c.IsLeaf {
		s.exploded[c.ID] = true
		s.focusLeaf = c.ID
		s.epoch++
		return nil
	}
	if s.expanded[c.ID] {
		return ErrAlreadyExpanded
	}
	s.expanded[c.ID] = true
	delete(s.collapsed, c.ID)
	if c.ParentID != "" {
		delete(s.collapsed, c.ParentID)
	}
	s.stack = append(s.stack, c.ID)
	s.epoch++
	return nil
}

// MarkExpanding flags c.ID while its expansion fetch is in flight, making
// PreviewExpand report ErrExpandInProgress for the same id.
func (s *State) MarkExpanding(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expanding[id] = true
}

// ClearExpanding removes the in-flight flag once the expansion settles.
func (s *State) ClearExpanding(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expanding, id)
}

// Collapse applies a resolved collapse preview: the parent id joins the
// collapsed set, the parent and all sibling ids leave the expanded set
// and the expansion stack, and member-explosion state for the collapsed
// ids is cleared.
func (s *State) Collapse(p CollapsePreview) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collapsed[p.ParentID] = true
	remove := map[string]bool{p.ParentID: true}
	for _, id := range p.SiblingIDs {
		remove[id] = true
	}
	for id := range remove {
		delete(s.expanded, id)
		delete(s.exploded, id)
		if s.focusLeaf == id {
			s.focusLeaf = ""
		}
	}
	kept := s.stack[:0]
	for _, id := range s.stack {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	s.stack = kept
	s.epoch++
}

// PopExpansion removes and returns the most recently pushed expansion id,
// supporting LIFO semantic-zoom undo independent of any UI selection. The
// caller resolves the collapse preview for the returned id and applies
// Collapse.
func (s *State) PopExpansion() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return "", false
	}
	id := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return id, true
}

// ExpandedIDs returns the expanded set, sorted.
func (s *State) ExpandedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.expanded)
}

// CollapsedIDs returns the collapsed set, sorted.
func (s *State) CollapsedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.collapsed)
}

// FocusLeaf returns the currently exploded leaf id, if any.
func (s *State) FocusLeaf() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focusLeaf
}

// IsExpanded reports whether id is in the expanded set.
func (s *State) IsExpanded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expanded[id]
}

// IsCollapsed reports whether id is in the collapsed set.
func (s *State) IsCollapsed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collapsed[id]
}

// StackDepth returns the number of undoable expansions.
func (s *State) StackDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
