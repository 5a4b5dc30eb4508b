// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package view holds the expand/collapse/budget state machine governing
// which clusters are currently visible.
package view

import "errors"

// Sentinel errors for view-state transitions.
var (
	// ErrBudgetExceeded is returned when admitting an expansion would push
	// the visible cluster count past the budget.
	ErrBudgetExceeded = errors.New("expansion would exceed node budget")

	// ErrNotExpandable is returned for internal clusters without children.
	ErrNotExpandable = errors.New("cluster has no children to expand")

	// ErrAlreadyExpanded is returned for clusters already in the expanded
	// set; expand is idempotent and the caller should treat this as a
	// no-op.
	ErrAlreadyExpanded = errors.New("cluster already expanded")

	// ErrExpandInProgress is returned while a previous expansion of the
	// same cluster has not settled yet.
	ErrExpandInProgress = errors.New("expansion already in progress")

	// ErrStalePreview is returned when committing an admission preview
	// computed against an older visible set. Previews must be recomputed
	// after every transition.
	ErrStalePreview = errors.New("admission preview is stale")
)
