// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"errors"
	"fmt"
)

// ErrNoClusters is surfaced when the active request returned an empty
// result and no prior results are held.
var ErrNoClusters = errors.New("no clusters returned")

// LoadError is the user-visible failure of the active request, after
// retries were exhausted inside the fetch layer.
type LoadError struct {
	Resource string
	Err      error
}

// Error implements error.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Resource, e.Err)
}

// Unwrap exposes the underlying fetch error.
func (e *LoadError) Unwrap() error { return e.Err }
