// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session orchestrates one explorer session: it turns view-state
// mutations into backend queries, resolves response races, aligns each
// new layout onto the previous frame, and declutters the result into
// render-facing nodes.
package session

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/constellation/services/explorer/cluster"
	"github.com/AleutianAI/constellation/services/explorer/coordinate"
	"github.com/AleutianAI/constellation/services/explorer/layout"
	"github.com/AleutianAI/constellation/services/explorer/query"
	"github.com/AleutianAI/constellation/services/explorer/view"
)

var sessionTracer = otel.Tracer("constellation.session")

// Defaults for node sizing and interaction pacing.
const (
	// DefaultRadiusScale multiplies sqrt(cluster size) into a world radius.
	DefaultRadiusScale = 0.35

	// DefaultMinRadius keeps tiny clusters clickable.
	DefaultMinRadius = 0.5

	// DefaultGranularityStep is the visible-target change per semantic
	// zoom detent.
	DefaultGranularityStep = 2

	// defaultRevalidateInterval paces background refreshes of stale cache
	// hits.
	defaultRevalidateInterval = 30 * time.Second

	// revalidateTimeout bounds each background refresh.
	revalidateTimeout = 30 * time.Second
)

// Node is the render-facing shape of one visible cluster.
type Node struct {
	ID     string
	X, Y   float64
	Radius float64
	IsLeaf bool
	Label  string
	Size   int
}

// Frame is one applied view: everything the render surface needs, plus
// alignment diagnostics.
type Frame struct {
	Nodes      []Node
	Edges      []cluster.Edge
	Clusters   []cluster.Cluster
	AlignStats layout.AlignStats
	FromCache  bool
	Stale      bool
}

// Options configures a Session.
type Options struct {
	// Budget is the hard cap on visible clusters. Default: 100.
	Budget int

	// Ego optionally centers the view on one account.
	Ego string

	// LouvainWeight blends follow vs engagement edges, in [0, 1].
	LouvainWeight float64

	// ExpandDepth sets the baseline hierarchy cut depth, in [0, 1].
	ExpandDepth float64

	// Separation configures the declutter pass.
	Separation layout.SeparationConfig

	// RadiusScale and MinRadius control node sizing.
	RadiusScale float64
	MinRadius   float64

	// GranularityStep is the visible-target delta per semantic zoom
	// detent. Default: DefaultGranularityStep.
	GranularityStep int

	// RevalidateInterval paces background refreshes of stale cache hits.
	RevalidateInterval time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session drives one user's explorer view.
//
// Description:
//
//	All mutating operations follow the same shape: mutate the view state,
//	dispatch a fetch on the primary stream (cancelling the previous
//	in-flight fetch), resolve the settled response against the stream's
//	race policy, and on an applied verdict fold the response into a new
//	Frame. The previous frame's aligned positions are kept as the
//	reference for the next alignment; the separation pass is cosmetic and
//	never feeds back into that reference.
//
// Thread Safety: safe for concurrent use; a superseded call returns a
// nil Frame with a nil error.
type Session struct {
	id      string
	service cluster.Service
	state   *view.State
	stream  *coordinate.Stream
	logger  *slog.Logger

	ego             string
	louvainWeight   float64
	expandDepth     float64
	separation      layout.SeparationConfig
	radiusScale     float64
	minRadius       float64
	granularityStep int

	revalidate *rate.Limiter

	mu            sync.Mutex
	prevPositions layout.PositionMap
	lastFrame     *Frame
}

// New creates a Session.
func New(service cluster.Service, opts Options) *Session {
	if opts.Budget <= 0 {
		opts.Budget = 100
	}
	if opts.Separation.Passes <= 0 {
		opts.Separation = layout.DefaultSeparationConfig()
	}
	if opts.RadiusScale <= 0 {
		opts.RadiusScale = DefaultRadiusScale
	}
	if opts.MinRadius <= 0 {
		opts.MinRadius = DefaultMinRadius
	}
	if opts.GranularityStep <= 0 {
		opts.GranularityStep = DefaultGranularityStep
	}
	if opts.RevalidateInterval <= 0 {
		opts.RevalidateInterval = defaultRevalidateInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:              id,
		service:         service,
		state:           view.New(opts.Budget),
		stream:          coordinate.NewStream(),
		logger:          opts.Logger.With(slog.String("session_id", id)),
		ego:             opts.Ego,
		louvainWeight:   opts.LouvainWeight,
		expandDepth:     opts.ExpandDepth,
		separation:      opts.Separation,
		radiusScale:     opts.RadiusScale,
		minRadius:       opts.MinRadius,
		granularityStep: opts.GranularityStep,
		revalidate:      rate.NewLimiter(rate.Every(opts.RevalidateInterval), 1),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State exposes the view-state machine for admission queries.
func (s *Session) State() *view.State { return s.state }

// LastFrame returns the most recently applied frame, or nil.
func (s *Session) LastFrame() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrame
}

// Refresh fetches and applies the current view.
//
// Outputs:
//   - *Frame: The applied frame; nil (with nil error) when the response
//     was superseded, dropped, or the fetch was cancelled by a newer one.
//   - error: ErrNoClusters or a load failure, surfaced only while this
//     request is still the active one.
func (s *Session) Refresh(ctx context.Context) (*Frame, error) {
	return s.fetchAndApply(ctx)
}

// Expand expands an internal cluster or explodes a leaf, then refreshes.
//
// The admission preview is computed and committed atomically with respect
// to other state transitions; a concurrent transition invalidates the
// preview and surfaces view.ErrStalePreview.
func (s *Session) Expand(ctx context.Context, c view.Cluster) (*Frame, error) {
	preview, err := s.state.PreviewExpand(c)
	if err != nil {
		return nil, err
	}
	if err := s.state.Expand(preview); err != nil {
		return nil, err
	}
	s.state.MarkExpanding(c.ID)
	defer s.state.ClearExpanding(c.ID)
	return s.fetchAndApply(ctx)
}

// Collapse applies a resolved collapse preview, then refreshes.
func (s *Session) Collapse(ctx context.Context, p view.CollapsePreview) (*Frame, error) {
	s.state.Collapse(p)
	return s.fetchAndApply(ctx)
}

// SemanticCollapse undoes the most recent explicit expansion (LIFO),
// independent of any UI selection. A false second return means the
// expansion stack was empty and nothing happened.
func (s *Session) SemanticCollapse(ctx context.Context) (*Frame, bool, error) {
	id, ok := s.state.PopExpansion()
	if !ok {
		return nil, false, nil
	}
	frame, err := s.Collapse(ctx, s.resolveCollapse(id))
	return frame, true, err
}

// SetBudget changes the node budget, reclamps the visible target, and
// refreshes.
func (s *Session) SetBudget(ctx context.Context, budget int) (*Frame, error) {
	s.state.SetBudget(budget)
	return s.fetchAndApply(ctx)
}

// AdjustGranularity applies a semantic-zoom detent delta (positive means
// finer detail) to the visible target, then refreshes.
func (s *Session) AdjustGranularity(ctx context.Context, delta int) (*Frame, error) {
	if delta == 0 {
		return s.LastFrame(), nil
	}
	s.state.SetVisibleTarget(s.state.VisibleTarget() + delta*s.granularityStep)
	return s.fetchAndApply(ctx)
}

// resolveCollapse builds the collapse preview for parentID from the last
// applied frame: the siblings are the visible clusters parented by it.
func (s *Session) resolveCollapse(parentID string) view.CollapsePreview {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := view.CollapsePreview{ParentID: parentID}
	if s.lastFrame == nil {
		return p
	}
	for _, c := range s.lastFrame.Clusters {
		if c.ParentID == parentID {
			p.SiblingIDs = append(p.SiblingIDs, c.ID)
		}
	}
	return p
}

func (s *Session) buildQuery() query.ViewQuery {
	return query.ViewQuery{
		VisibleTarget: s.state.VisibleTarget(),
		Ego:           s.ego,
		LouvainWeight: s.louvainWeight,
		ExpandDepth:   s.expandDepth,
		Budget:        s.state.Budget(),
		Expanded:      s.state.ExpandedIDs(),
		Collapsed:     s.state.CollapsedIDs(),
		FocusLeaf:     s.state.FocusLeaf(),
	}
}

// fetchAndApply is the single path from view state to applied frame.
func (s *Session) fetchAndApply(ctx context.Context) (*Frame, error) {
	sctx, span := sessionTracer.Start(ctx, "session.fetch_apply")
	defer span.End()

	q := s.buildQuery()
	id, fctx, cancel := s.stream.Dispatch(sctx)
	defer cancel()

	result, err := s.service.FetchView(fctx, q)
	if err != nil {
		if coordinate.IsCancellation(err) {
			// This fetch lost to a newer dispatch; the newer call reports.
			return nil, nil
		}
		if !s.stream.Active(id) {
			s.logger.Debug("suppressing failure of superseded fetch", "error", err)
			return nil, nil
		}
		return nil, &LoadError{Resource: "clusters", Err: err}
	}

	verdict := s.stream.Resolve(id, result.Result.Empty(), fctx.Err() != nil)
	span.SetAttributes(attribute.String("verdict", verdict.String()))
	switch verdict {
	case coordinate.Apply:
	case coordinate.DropEmpty:
		if s.stream.Active(id) {
			return nil, ErrNoClusters
		}
		return nil, nil
	default:
		return nil, nil
	}

	if result.FromCache && result.Stale && s.revalidate.Allow() {
		go s.revalidateInBackground(q)
	}
	return s.apply(result), nil
}

// apply folds an accepted response into a Frame.
func (s *Session) apply(v *cluster.View) *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions := v.Result.PositionMap()
	aligned, stats := layout.Align(positions, s.prevPositions)
	if stats.Anomalous {
		s.logger.Warn("anomalous alignment scale, overlap set may be unreliable",
			"scale", stats.Scale,
			"overlap", stats.Overlap,
		)
	}
	// The aligned (pre-separation) positions are the next alignment's
	// reference frame.
	s.prevPositions = aligned

	circles := make([]layout.Circle, 0, len(v.Result.Clusters))
	for _, c := range v.Result.Clusters {
		p := aligned[c.ID]
		circles = append(circles, layout.Circle{
			ID:     c.ID,
			X:      p.X,
			Y:      p.Y,
			Radius: s.radius(c.Size),
		})
	}
	separated := layout.Separate(circles, s.separation)

	nodes := make([]Node, len(separated))
	for i, circ := range separated {
		c, _ := v.Result.ByID(circ.ID)
		nodes[i] = Node{
			ID:     circ.ID,
			X:      circ.X,
			Y:      circ.Y,
			Radius: circ.Radius,
			IsLeaf: c.IsLeaf,
			Label:  c.Label,
			Size:   c.Size,
		}
	}

	s.state.ApplyFetch(len(v.Result.Clusters))
	framesApplied.Inc()

	frame := &Frame{
		Nodes:      nodes,
		Edges:      v.Result.Edges,
		Clusters:   v.Result.Clusters,
		AlignStats: stats,
		FromCache:  v.FromCache,
		Stale:      v.Stale,
	}
	s.lastFrame = frame
	return frame
}

func (s *Session) radius(size int) float64 {
	r := s.radiusScale * math.Sqrt(float64(size))
	if r < s.minRadius {
		r = s.minRadius
	}
	return r
}

// revalidateInBackground refreshes a stale cache entry without touching
// the visible frame; the next fetch for the same key sees fresh data.
func (s *Session) revalidateInBackground(q query.ViewQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
	defer cancel()

	backgroundRevalidations.Inc()
	if _, err := s.service.Revalidate(ctx, q); err != nil && !coordinate.IsCancellation(err) {
		s.logger.Debug("background revalidation failed", "error", err)
	}
}
