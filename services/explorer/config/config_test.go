// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad_LayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explorer.yaml")
	body := `
backend:
  base_url: http://clusters.internal:9000
  retries: 4
view:
  budget: 60
  ego: alice
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://clusters.internal:9000" {
		t.Errorf("base_url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Retries != 4 {
		t.Errorf("retries = %d, want 4", cfg.Backend.Retries)
	}
	if cfg.View.Budget != 60 || cfg.View.Ego != "alice" {
		t.Errorf("view = %+v", cfg.View)
	}
	// Untouched sections keep their defaults.
	if cfg.Cache.MaxEntries != 5 {
		t.Errorf("cache.max_entries = %d, want default 5", cfg.Cache.MaxEntries)
	}
	if got := cfg.Cache.Freshness(); got != 5*time.Minute {
		t.Errorf("freshness = %v, want 5m", got)
	}
	if got := cfg.Backend.Backoff(); got != 250*time.Millisecond {
		t.Errorf("backoff = %v, want 250ms", got)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("backend: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.Backend.BaseURL = "" }},
		{"negative retries", func(c *Config) { c.Backend.Retries = -1 }},
		{"zero backoff", func(c *Config) { c.Backend.BackoffMS = 0 }},
		{"zero attempt timeout", func(c *Config) { c.Backend.AttemptTimeoutMS = 0 }},
		{"zero cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"tiny budget", func(c *Config) { c.View.Budget = 3 }},
		{"louvain weight above one", func(c *Config) { c.View.LouvainWeight = 1.5 }},
		{"negative expand depth", func(c *Config) { c.View.ExpandDepth = -0.1 }},
		{"zero separation passes", func(c *Config) { c.Layout.SeparationPasses = 0 }},
		{"negative margin", func(c *Config) { c.Layout.SeparationMargin = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
