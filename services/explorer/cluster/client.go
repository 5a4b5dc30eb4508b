// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/constellation/services/explorer/cache"
	"github.com/AleutianAI/constellation/services/explorer/coordinate"
	"github.com/AleutianAI/constellation/services/explorer/query"
)

// ViewPath is the backend endpoint serving cluster view queries.
const ViewPath = "/api/clusters"

// ErrDecode indicates a response body that could not be parsed as a
// cluster payload. Decode failures are not retried.
var ErrDecode = errors.New("malformed cluster payload")

// View is a fetched result plus its provenance.
type View struct {
	Result *FetchResult

	// FromCache is true when the result was served without a network call.
	FromCache bool

	// Stale is true for cache hits older than the freshness window. The
	// caller decides whether to revalidate in the background.
	Stale bool

	// Age is the cache-entry age; zero for network responses.
	Age time.Duration
}

// Service is the backend contract the session depends on.
type Service interface {
	// FetchView resolves a view query, serving from cache when possible.
	FetchView(ctx context.Context, q query.ViewQuery) (*View, error)

	// Revalidate resolves a view query against the network, bypassing the
	// cache read but refreshing the cache entry on success.
	Revalidate(ctx context.Context, q query.ViewQuery) (*View, error)
}

// Client is the HTTP Service implementation.
//
// Description:
//
//	Resolves view queries cache-first: the canonical query key is checked
//	against the per-resource store, and both fresh and stale hits are
//	served immediately (staleness is advisory). Misses go through the
//	Coordinator, which provides per-attempt timeouts, retry with backoff,
//	cancellation propagation, and in-flight deduplication by query key.
//	Successful non-empty responses refresh the cache best-effort.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	baseURL     string
	coordinator *coordinate.Coordinator
	cache       *cache.RequestCache
	logger      *slog.Logger
}

// NewClient creates a Client. The cache may be nil, which disables
// caching entirely (every call hits the network).
func NewClient(baseURL string, coordinator *coordinate.Coordinator, requestCache *cache.RequestCache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		coordinator: coordinator,
		cache:       requestCache,
		logger:      logger,
	}
}

// FetchView implements Service.
func (c *Client) FetchView(ctx context.Context, q query.ViewQuery) (*View, error) {
	q.Normalize()
	key := q.Key()

	if c.cache != nil {
		if hit := c.cache.Get(key); hit != nil {
			result, err := decode(hit.Data)
			if err == nil {
				return &View{Result: result, FromCache: true, Stale: hit.IsStale, Age: hit.Age}, nil
			}
			// An unreadable entry behaves like a miss.
			c.logger.Warn("discarding undecodable cache entry", "key", string(key), "error", err)
		}
	}
	return c.fetch(ctx, key, q)
}

// Revalidate implements Service.
func (c *Client) Revalidate(ctx context.Context, q query.ViewQuery) (*View, error) {
	q.Normalize()
	return c.fetch(ctx, q.Key(), q)
}

func (c *Client) fetch(ctx context.Context, key query.Key, q query.ViewQuery) (*View, error) {
	url := c.baseURL + ViewPath + "?" + q.Values().Encode()
	res, err := c.coordinator.FetchDeduped(ctx, key, url)
	if err != nil {
		return nil, err
	}

	result, err := decode(res.Body)
	if err != nil {
		return nil, err
	}
	if c.cache != nil && !result.Empty() {
		c.cache.Set(key, json.RawMessage(res.Body))
	}
	return &View{Result: result}, nil
}

func decode(body []byte) (*FetchResult, error) {
	var result FetchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &result, nil
}
