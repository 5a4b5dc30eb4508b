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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/constellation/services/explorer/cache"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response cache",
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cached entries for the view resource",
		RunE:  runCacheStats,
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached view responses",
		RunE:  runCacheClear,
	}
)

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Cache.Dir == "" {
		return errors.New("no cache.dir configured; the in-memory cache has no persistent state")
	}
	store, err := cache.OpenBadgerStore(cfg.Cache.Dir)
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	defer store.Close()

	doc, err := store.Load("view")
	if err != nil {
		if errors.Is(err, cache.ErrResourceNotFound) {
			fmt.Println("cache is empty")
			return nil
		}
		return err
	}
	if doc.Version != cache.SchemaVersion {
		fmt.Printf("cache holds schema v%d (current is v%d); entries will be ignored\n",
			doc.Version, cache.SchemaVersion)
		return nil
	}

	fmt.Printf("%d entries (schema v%d)\n", len(doc.Entries), doc.Version)
	for key, entry := range doc.Entries {
		age := time.Since(time.UnixMilli(entry.TimestampMilli)).Round(time.Second)
		fmt.Printf("  %s  age=%-8s  %d bytes\n", key, age, len(entry.Payload))
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Cache.Dir == "" {
		return errors.New("no cache.dir configured; nothing to clear")
	}
	store, err := cache.OpenBadgerStore(cfg.Cache.Dir)
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	defer store.Close()

	if err := store.Delete("view"); err != nil && !errors.Is(err, cache.ErrResourceNotFound) {
		return err
	}
	fmt.Println("cache cleared")
	return nil
}
