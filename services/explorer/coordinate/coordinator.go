// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/constellation/services/explorer/query"
)

var coordinatorTracer = otel.Tracer("constellation.coordinate")

// RetryConfig configures fetch retry behavior.
type RetryConfig struct {
	// Retries is the number of retries after the initial attempt.
	// Default: 2 (three attempts total).
	Retries int

	// BackoffBase is the base wait before retry attempt N, scaled by 2^N.
	// Default: 250ms.
	BackoffBase time.Duration

	// AttemptTimeout bounds each individual attempt, not the logical
	// request. Default: 10s.
	AttemptTimeout time.Duration
}

// DefaultRetryConfig returns production defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Retries:        2,
		BackoffBase:    250 * time.Millisecond,
		AttemptTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration.
func (c RetryConfig) Validate() error {
	if c.Retries < 0 {
		return errors.New("retries must be >= 0")
	}
	if c.BackoffBase <= 0 {
		return errors.New("backoff_base must be positive")
	}
	if c.AttemptTimeout <= 0 {
		return errors.New("attempt_timeout must be positive")
	}
	return nil
}

// Result is a completed fetch: the response body plus timing metadata.
type Result struct {
	Status int
	Body   []byte
	Timing Timing
}

// Empty reports whether the response carried no usable payload.
func (r *Result) Empty() bool {
	return r == nil || len(r.Body) == 0
}

// Coordinator wraps an HTTP client with retry, per-attempt timeouts,
// cancellation propagation, and in-flight deduplication.
//
// Thread Safety: safe for concurrent use.
type Coordinator struct {
	client *http.Client
	config RetryConfig
	logger *slog.Logger
	flight singleflight.Group
}

// New creates a Coordinator. A nil client falls back to a default client
// without its own timeout (attempts are bounded individually).
func New(client *http.Client, config RetryConfig, logger *slog.Logger) *Coordinator {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{client: client, config: config, logger: logger}
}

// FetchWithRetry performs a GET with exponential-backoff retry.
//
// Description:
//
//	Each attempt is bounded by its own timer; exceeding it aborts that
//	attempt only. If ctx (the external signal) is already done before the
//	first attempt, ErrCancelled is returned without any network call. A
//	failure caused by ctx firing propagates ErrCancelled immediately
//	without retrying. Other failures wait BackoffBase * 2^attempt and
//	retry until attempts are exhausted, then surface the last error
//	wrapped in *FetchError with the accumulated timing.
//
// Inputs:
//   - ctx: The external cancellation signal for the logical request.
//   - url: The target URL.
//
// Outputs:
//   - *Result: Body, status, and timing on success.
//   - error: ErrCancelled, or *FetchError wrapping the last attempt error.
func (c *Coordinator) FetchWithRetry(ctx context.Context, url string) (*Result, error) {
	fctx, span := coordinatorTracer.Start(ctx, "coordinate.fetch")
	defer span.End()

	start := time.Now()
	timing := Timing{}

	if err := ctx.Err(); err != nil {
		timing.Aborted = true
		timing.Total = time.Since(start)
		return nil, &FetchError{Err: fmt.Errorf("%w: %w", ErrCancelled, err), Timing: timing}
	}

	attempts := c.config.Retries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		fetchAttempts.Inc()
		if attempt > 0 {
			fetchRetries.Inc()
		}

		attemptStart := time.Now()
		result, attemptErr := c.doAttempt(fctx, url)
		at := AttemptTiming{
			Attempt:  attempt + 1,
			Duration: time.Since(attemptStart),
			TimedOut: errors.Is(attemptErr, ErrAttemptTimeout),
			Err:      attemptErr,
		}
		timing.Attempts = append(timing.Attempts, at)

		if attemptErr == nil {
			timing.Success = true
			timing.Total = time.Since(start)
			result.Timing = timing
			span.SetAttributes(attribute.Int("attempts", attempt+1))
			return result, nil
		}

		// A failure caused by the external signal is a cancellation and is
		// never retried.
		if ctx.Err() != nil {
			timing.Aborted = true
			timing.Total = time.Since(start)
			return nil, &FetchError{Err: fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()), Timing: timing}
		}

		lastErr = attemptErr
		if !retryable(attemptErr) {
			break
		}
		if attempt == attempts-1 {
			break
		}

		wait := c.config.BackoffBase << uint(attempt)
		c.logger.Warn("fetch attempt failed, retrying",
			"attempt", attempt+1,
			"max_attempts", attempts,
			"backoff", wait.String(),
			"error", attemptErr,
		)
		select {
		case <-ctx.Done():
			timing.Aborted = true
			timing.Total = time.Since(start)
			return nil, &FetchError{Err: fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()), Timing: timing}
		case <-time.After(wait):
		}
	}

	timing.Total = time.Since(start)
	return nil, &FetchError{Err: lastErr, Timing: timing}
}

// FetchDeduped collapses concurrent fetches sharing a query key into one
// network call.
//
// The in-flight entry is removed once the shared call settles, success or
// failure, regardless of how many callers awaited it. The shared call runs
// under the first caller's context; later callers receive the same result
// (or error) object.
func (c *Coordinator) FetchDeduped(ctx context.Context, key query.Key, url string) (*Result, error) {
	v, err, shared := c.flight.Do(string(key), func() (any, error) {
		return c.FetchWithRetry(ctx, url)
	})
	if shared {
		dedupShared.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// doAttempt runs one bounded attempt.
func (c *Coordinator) doAttempt(ctx context.Context, url string) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadStatus, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		// Distinguish the attempt timer from other transport failures; the
		// caller separately checks the external signal.
		if attemptCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrAttemptTimeout, c.config.AttemptTimeout)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w reading body", ErrAttemptTimeout)
		}
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %d", ErrServerStatus, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	return &Result{Status: resp.StatusCode, Body: body}, nil
}

// retryable reports whether an attempt error should trigger another
// attempt. Network failures, 5xx statuses, and attempt timeouts retry;
// 4xx statuses and malformed requests do not.
func retryable(err error) bool {
	if errors.Is(err, ErrBadStatus) {
		return false
	}
	return true
}
