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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/constellation/services/clusterd"
)

var (
	servePort int
	serveSeed int64

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the stub cluster backend",
		Long: `Serves a deterministic, seed-generated community hierarchy over the
cluster contract. Intended for local development of the explorer; the
same seed always yields the same hierarchy and cluster ids.`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8090, "listen port")
	serveCmd.Flags().Int64Var(&serveSeed, "seed", 42, "hierarchy generation seed")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger("clusterd")
	defer logger.Close()

	server := clusterd.NewServer(serveSeed, logger.Slog())
	addr := fmt.Sprintf(":%d", servePort)
	logger.Info("cluster backend listening", "addr", addr, "seed", serveSeed)
	return server.Router().Run(addr)
}
