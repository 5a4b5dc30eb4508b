// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for user-supplied request
// parameters.
//
// Cluster ids and ego handles arrive from URLs and end up in log lines,
// cache keys, and backend queries; validating them at the boundary keeps
// malformed or hostile values out of all three.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// clusterIDPattern matches backend cluster ids: alphanumeric segments
// joined by dots, underscores, or hyphens, up to 64 characters.
var clusterIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]{0,63}$`)

// egoPattern matches account handles: an optional leading @, then 1-15
// word characters.
var egoPattern = regexp.MustCompile(`^@?\w{1,15}$`)

// ValidateClusterID checks a single cluster id.
func ValidateClusterID(id string) error {
	if id == "" {
		return fmt.Errorf("cluster id cannot be empty")
	}
	if !clusterIDPattern.MatchString(id) {
		return fmt.Errorf("invalid cluster id %q (1-64 alphanumeric, dot, underscore, or hyphen characters)", id)
	}
	return nil
}

// ValidateClusterIDs checks a list of ids, reporting every invalid one.
func ValidateClusterIDs(ids []string) error {
	var bad []string
	for _, id := range ids {
		if err := ValidateClusterID(id); err != nil {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid cluster ids: %s", strings.Join(bad, ", "))
	}
	return nil
}

// ValidateEgo checks an account handle.
func ValidateEgo(ego string) error {
	if ego == "" {
		return fmt.Errorf("ego cannot be empty")
	}
	if !egoPattern.MatchString(ego) {
		return fmt.Errorf("invalid ego handle %q", ego)
	}
	return nil
}
