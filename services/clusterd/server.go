// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package clusterd

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/constellation/pkg/validation"
)

// Request limits.
const (
	maxBudget      = 1000
	defaultVisible = 40
	defaultBudget  = 100
)

var viewRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "clusterd_view_requests_total",
	Help: "Cluster view requests by outcome",
}, []string{"status"})

// Wire types for the view response.
type clusterOut struct {
	ID                    string   `json:"id"`
	Size                  int      `json:"size"`
	IsLeaf                bool     `json:"isLeaf"`
	ParentID              string   `json:"parentId,omitempty"`
	ChildrenIDs           []string `json:"childrenIds,omitempty"`
	RepresentativeHandles []string `json:"representativeHandles,omitempty"`
	Label                 string   `json:"label,omitempty"`
}

type edgeOut struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

type metaOut struct {
	BudgetRemaining int `json:"budget_remaining"`
}

type viewOut struct {
	Clusters  []clusterOut          `json:"clusters"`
	Positions map[string][2]float64 `json:"positions"`
	Edges     []edgeOut             `json:"edges"`
	Meta      metaOut               `json:"meta"`
}

// Server serves the stub cluster backend.
type Server struct {
	hier   *Hierarchy
	logger *slog.Logger
}

// NewServer creates a Server over a seed-generated hierarchy.
func NewServer(seed int64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{hier: GenerateHierarchy(seed), logger: logger}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "constellation-clusterd"})
	})
	router.GET("/api/clusters", s.handleClusters)
	return router
}

// handleClusters resolves one view query against the hierarchy.
func (s *Server) handleClusters(c *gin.Context) {
	visible, err := intParam(c, "visible", defaultVisible)
	if err != nil {
		viewRequests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	budget, err := intParam(c, "budget", defaultBudget)
	if err != nil {
		viewRequests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if budget <= 0 || budget > maxBudget {
		viewRequests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("budget must be in [1, %d]", maxBudget)})
		return
	}
	for _, name := range []string{"louvain_weight", "expand_depth"} {
		if err := floatParamInRange(c, name); err != nil {
			viewRequests.WithLabelValues("bad_request").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if ego := c.Query("ego"); ego != "" {
		if err := validation.ValidateEgo(ego); err != nil {
			viewRequests.WithLabelValues("bad_request").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	expanded := idSet(c.Query("expanded"))
	collapsed := idSet(c.Query("collapsed"))
	for _, set := range []map[string]bool{expanded, collapsed} {
		if err := validation.ValidateClusterIDs(sortedIDs(set)); err != nil {
			viewRequests.WithLabelValues("bad_request").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	cut := s.hier.Cut(CutParams{
		VisibleTarget: visible,
		Budget:        budget,
		Expanded:      expanded,
		Collapsed:     collapsed,
	})

	out := viewOut{
		Clusters:  make([]clusterOut, 0, len(cut)),
		Positions: s.hier.Positions(cut, c.Request.URL.RawQuery),
		Edges:     s.hier.Edges(cut),
		Meta:      metaOut{BudgetRemaining: budget - len(cut)},
	}
	for _, id := range cut {
		n, ok := s.hier.Node(id)
		if !ok {
			continue
		}
		if n.IsLeaf {
			n.RepresentativeHandles = handlesFor(id)
		}
		out.Clusters = append(out.Clusters, n)
	}

	viewRequests.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, out)
}

// handlesFor derives deterministic member handles for a leaf.
func handlesFor(id string) []string {
	h := xxhash.Sum64String(id)
	handles := make([]string, 3)
	for i := range handles {
		handles[i] = fmt.Sprintf("@user_%04x", (h>>(8*i))&0xffff)
	}
	return handles
}

func intParam(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func floatParamInRange(c *gin.Context, name string) error {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return fmt.Errorf("%s must be a float in [0, 1]", name)
	}
	return nil
}

func idSet(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return set
}
