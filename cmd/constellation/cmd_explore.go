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
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/constellation/services/explorer/layout"
	"github.com/AleutianAI/constellation/services/explorer/render"
	"github.com/AleutianAI/constellation/services/explorer/session"
	"github.com/AleutianAI/constellation/services/explorer/view"
)

// ASCII viewport size for the map command.
const (
	mapWidth  = 72
	mapHeight = 20
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Interactively explore the cluster hierarchy",
	Long: `Opens a small REPL against the configured cluster backend.

Commands:
  r, refresh         re-fetch the current view
  x, expand <id>     expand a cluster (or explode a leaf)
  c, collapse <id>   collapse a cluster's visible children back into it
  b, back            undo the most recent expansion
  budget <n>         change the node budget
  + / -              finer / coarser detail (semantic zoom)
  map                draw the current view as an ASCII map
  q, quit            exit`,
	RunE: runExplore,
}

func init() {
	rootCmd.AddCommand(exploreCmd)
}

func runExplore(cmd *cobra.Command, args []string) error {
	logger := newLogger("explorer")
	defer logger.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	defer store.Close()

	client := newClusterClient(cfg, store, logger)
	sess := session.New(client, session.Options{
		Budget:        cfg.View.Budget,
		Ego:           cfg.View.Ego,
		LouvainWeight: cfg.View.LouvainWeight,
		ExpandDepth:   cfg.View.ExpandDepth,
		Separation: layout.SeparationConfig{
			Passes:      cfg.Layout.SeparationPasses,
			Margin:      cfg.Layout.SeparationMargin,
			MinDistance: cfg.Layout.MinDistance,
		},
		Logger: logger.Slog(),
	})

	ctx := cmd.Context()
	if frame, err := sess.Refresh(ctx); err != nil {
		return err
	} else if frame != nil {
		printFrame(frame)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("constellation> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if done := runExploreCommand(ctx, sess, fields); done {
			return nil
		}
	}
}

// runExploreCommand executes one REPL line; true means quit.
func runExploreCommand(ctx context.Context, sess *session.Session, fields []string) bool {
	report := func(frame *session.Frame, err error) {
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		case frame != nil:
			printFrame(frame)
		}
	}

	switch fields[0] {
	case "q", "quit", "exit":
		return true

	case "r", "refresh":
		report(sess.Refresh(ctx))

	case "x", "expand":
		if len(fields) < 2 {
			fmt.Fprintln(os.Stderr, "usage: expand <id>")
			return false
		}
		c, err := visibleCluster(sess, fields[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return false
		}
		report(sess.Expand(ctx, c))

	case "c", "collapse":
		if len(fields) < 2 {
			fmt.Fprintln(os.Stderr, "usage: collapse <id>")
			return false
		}
		report(sess.Collapse(ctx, collapsePreview(sess, fields[1])))

	case "b", "back":
		frame, ok, err := sess.SemanticCollapse(ctx)
		if !ok && err == nil {
			fmt.Println("nothing to undo")
			return false
		}
		report(frame, err)

	case "budget":
		if len(fields) < 2 {
			fmt.Fprintln(os.Stderr, "usage: budget <n>")
			return false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "budget must be an integer")
			return false
		}
		report(sess.SetBudget(ctx, n))

	case "+":
		report(sess.AdjustGranularity(ctx, 1))

	case "-":
		report(sess.AdjustGranularity(ctx, -1))

	case "map":
		if frame := sess.LastFrame(); frame != nil {
			printMap(frame)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", fields[0])
	}
	return false
}

// visibleCluster resolves an id against the last frame into the shape the
// state machine needs for admission.
func visibleCluster(sess *session.Session, id string) (view.Cluster, error) {
	frame := sess.LastFrame()
	if frame == nil {
		return view.Cluster{}, errors.New("no view loaded yet")
	}
	for _, c := range frame.Clusters {
		if c.ID == id {
			return view.Cluster{
				ID:            c.ID,
				ParentID:      c.ParentID,
				IsLeaf:        c.IsLeaf,
				ChildrenCount: len(c.ChildrenIDs),
			}, nil
		}
	}
	return view.Cluster{}, fmt.Errorf("cluster %q is not visible", id)
}

// collapsePreview resolves the visible children of parentID as the
// sibling set to fold back into it.
func collapsePreview(sess *session.Session, parentID string) view.CollapsePreview {
	p := view.CollapsePreview{ParentID: parentID}
	frame := sess.LastFrame()
	if frame == nil {
		return p
	}
	for _, c := range frame.Clusters {
		if c.ParentID == parentID {
			p.SiblingIDs = append(p.SiblingIDs, c.ID)
		}
	}
	return p
}

func printFrame(frame *session.Frame) {
	fmt.Printf("%d clusters, %d edges", len(frame.Nodes), len(frame.Edges))
	if frame.FromCache {
		fmt.Print(" (cached")
		if frame.Stale {
			fmt.Print(", stale")
		}
		fmt.Print(")")
	}
	if frame.AlignStats.Aligned {
		fmt.Printf("  [aligned on %d, drift %.3f -> %.3f]",
			frame.AlignStats.Overlap, frame.AlignStats.RMSBefore, frame.AlignStats.RMSAfter)
	}
	fmt.Println()

	for _, n := range frame.Nodes {
		kind := "community"
		if n.IsLeaf {
			kind = "leaf"
		}
		fmt.Printf("  %-12s %-9s size=%-6d (%7.2f, %7.2f)  %s\n",
			n.ID, kind, n.Size, n.X, n.Y, n.Label)
	}
}

// printMap projects the frame onto an ASCII viewport.
func printMap(frame *session.Frame) {
	surface := render.NewSurface(mapWidth, mapHeight)
	circles := make([]layout.Circle, len(frame.Nodes))
	for i, n := range frame.Nodes {
		circles[i] = layout.Circle{ID: n.ID, X: n.X, Y: n.Y, Radius: n.Radius}
	}
	surface.AutoFit(circles)

	grid := make([][]byte, mapHeight)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(" ", mapWidth))
	}
	for _, n := range frame.Nodes {
		p := surface.ToScreen(layout.Point{X: n.X, Y: n.Y})
		x, y := int(p.X), int(p.Y)
		if x < 0 || x >= mapWidth || y < 0 || y >= mapHeight {
			continue
		}
		mark := byte('o')
		if n.IsLeaf {
			mark = '.'
		}
		grid[y][x] = mark
	}
	for _, row := range grid {
		fmt.Println(string(row))
	}
}
