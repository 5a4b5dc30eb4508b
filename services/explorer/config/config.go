// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides configuration loading for the explorer.
//
// Thread Safety:
//
//	All exported functions and types are safe for concurrent use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxYAMLFileSize is the maximum allowed config file size (1MB).
const MaxYAMLFileSize = 1024 * 1024

// BackendConfig points the fetch layer at the cluster service.
type BackendConfig struct {
	// BaseURL is the cluster service root, e.g. http://localhost:8090.
	BaseURL string `yaml:"base_url"`

	// Retries after the initial attempt.
	Retries int `yaml:"retries"`

	// BackoffMS is the base retry backoff in milliseconds, doubled per
	// attempt.
	BackoffMS int `yaml:"backoff_ms"`

	// AttemptTimeoutMS bounds each individual attempt.
	AttemptTimeoutMS int `yaml:"attempt_timeout_ms"`
}

// Backoff returns the backoff base as a duration.
func (c BackendConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMS) * time.Millisecond
}

// AttemptTimeout returns the per-attempt timeout as a duration.
func (c BackendConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutMS) * time.Millisecond
}

// CacheConfig controls the persistent response cache.
type CacheConfig struct {
	// Dir is the on-disk store location. Empty selects the in-memory
	// store.
	Dir string `yaml:"dir"`

	// MaxEntries caps entries per logical resource.
	MaxEntries int `yaml:"max_entries"`

	// FreshnessSeconds is the window after which hits are stale.
	FreshnessSeconds int `yaml:"freshness_seconds"`
}

// Freshness returns the staleness window as a duration.
func (c CacheConfig) Freshness() time.Duration {
	return time.Duration(c.FreshnessSeconds) * time.Second
}

// ViewConfig seeds the view-state machine.
type ViewConfig struct {
	// Budget is the hard cap on visible clusters.
	Budget int `yaml:"budget"`

	// Ego optionally centers the view on one account.
	Ego string `yaml:"ego"`

	// LouvainWeight blends follow vs engagement edges, in [0, 1].
	LouvainWeight float64 `yaml:"louvain_weight"`

	// ExpandDepth sets the baseline cut depth, in [0, 1].
	ExpandDepth float64 `yaml:"expand_depth"`
}

// LayoutConfig controls the declutter pass.
type LayoutConfig struct {
	// SeparationPasses is the number of relaxation passes.
	SeparationPasses int `yaml:"separation_passes"`

	// SeparationMargin is added on top of radii for minimum separation.
	SeparationMargin float64 `yaml:"separation_margin"`

	// MinDistance is an absolute floor on pair separation.
	MinDistance float64 `yaml:"min_distance"`
}

// Config is the full explorer configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Cache   CacheConfig   `yaml:"cache"`
	View    ViewConfig    `yaml:"view"`
	Layout  LayoutConfig  `yaml:"layout"`
}

// Default returns production defaults.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:          "http://localhost:8090",
			Retries:          2,
			BackoffMS:        250,
			AttemptTimeoutMS: 10_000,
		},
		Cache: CacheConfig{
			MaxEntries:       5,
			FreshnessSeconds: 300,
		},
		View: ViewConfig{
			Budget:        100,
			LouvainWeight: 0.5,
			ExpandDepth:   0.25,
		},
		Layout: LayoutConfig{
			SeparationPasses: 50,
			SeparationMargin: 0.5,
		},
	}
}

// Load reads a YAML config file, layering it over defaults.
//
// Inputs:
//   - path: The config file location.
//
// Outputs:
//   - Config: The merged configuration, validated.
//   - error: I/O, size-limit, parse, or validation failures.
func Load(path string) (Config, error) {
	cfg := Default()

	info, err := os.Stat(path)
	if err != nil {
		return cfg, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return cfg, fmt.Errorf("config file %s exceeds %d bytes", path, MaxYAMLFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks ranges and required fields.
func (c Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.Retries < 0 {
		return fmt.Errorf("backend.retries must be >= 0")
	}
	if c.Backend.BackoffMS <= 0 {
		return fmt.Errorf("backend.backoff_ms must be positive")
	}
	if c.Backend.AttemptTimeoutMS <= 0 {
		return fmt.Errorf("backend.attempt_timeout_ms must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive")
	}
	if c.Cache.FreshnessSeconds <= 0 {
		return fmt.Errorf("cache.freshness_seconds must be positive")
	}
	if c.View.Budget < 5 {
		return fmt.Errorf("view.budget must be >= 5")
	}
	if c.View.LouvainWeight < 0 || c.View.LouvainWeight > 1 {
		return fmt.Errorf("view.louvain_weight must be in [0, 1]")
	}
	if c.View.ExpandDepth < 0 || c.View.ExpandDepth > 1 {
		return fmt.Errorf("view.expand_depth must be in [0, 1]")
	}
	if c.Layout.SeparationPasses <= 0 {
		return fmt.Errorf("layout.separation_passes must be positive")
	}
	if c.Layout.SeparationMargin < 0 {
		return fmt.Errorf("layout.separation_margin must be >= 0")
	}
	if c.Layout.MinDistance < 0 {
		return fmt.Errorf("layout.min_distance must be >= 0")
	}
	return nil
}
