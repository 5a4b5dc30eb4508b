// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/constellation/pkg/logging"
	"github.com/AleutianAI/constellation/services/explorer/cache"
	"github.com/AleutianAI/constellation/services/explorer/cluster"
	"github.com/AleutianAI/constellation/services/explorer/config"
	"github.com/AleutianAI/constellation/services/explorer/coordinate"
)

var (
	rootCmd = &cobra.Command{
		Use:   "constellation",
		Short: "Interactive explorer for hierarchical community graphs",
		Long: `Constellation explores a hierarchical cluster graph served by a
cluster backend: expand and collapse communities under a node budget,
with cached fetches and layouts stabilized across refreshes.`,
	}

	configPath string
	logDir     string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to explorer.yaml (defaults used when unset)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "directory for JSON log files (stderr only when unset)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger from the global flags.
func newLogger(service string) *logging.Logger {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{Level: level, LogDir: logDir, Service: service})
}

// loadConfig reads --config, falling back to defaults when the flag is
// unset or the default path does not exist.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// openStore selects the cache store from config: on-disk when a cache
// dir is set, in-memory otherwise.
func openStore(cfg config.Config) (cache.Store, error) {
	if cfg.Cache.Dir == "" {
		return cache.NewMemoryStore(), nil
	}
	return cache.OpenBadgerStore(cfg.Cache.Dir)
}

// newClusterClient wires the fetch stack from config.
func newClusterClient(cfg config.Config, store cache.Store, logger *logging.Logger) *cluster.Client {
	requestCache := cache.New("view", store, cache.Options{
		MaxEntries: cfg.Cache.MaxEntries,
		Freshness:  cfg.Cache.Freshness(),
		Logger:     logger.Slog(),
	})
	coordinator := coordinate.New(&http.Client{}, coordinate.RetryConfig{
		Retries:        cfg.Backend.Retries,
		BackoffBase:    cfg.Backend.Backoff(),
		AttemptTimeout: cfg.Backend.AttemptTimeout(),
	}, logger.Slog())
	return cluster.NewClient(cfg.Backend.BaseURL, coordinator, requestCache, logger.Slog())
}
