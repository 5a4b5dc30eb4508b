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
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/constellation/services/explorer/query"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		Retries:        2,
		BackoffBase:    time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RetryConfig
		wantErr bool
	}{
		{"defaults are valid", DefaultRetryConfig(), false},
		{"negative retries invalid", RetryConfig{Retries: -1, BackoffBase: time.Second, AttemptTimeout: time.Second}, true},
		{"zero backoff invalid", RetryConfig{Retries: 1, BackoffBase: 0, AttemptTimeout: time.Second}, true},
		{"zero attempt timeout invalid", RetryConfig{Retries: 1, BackoffBase: time.Second, AttemptTimeout: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetchWithRetry_SucceedsOnThirdAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), fastRetryConfig(), nil)
	result, err := c.FetchWithRetry(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("network calls = %d, want 3", got)
	}
	if len(result.Timing.Attempts) != 3 {
		t.Errorf("recorded attempts = %d, want 3", len(result.Timing.Attempts))
	}
	if !result.Timing.Success {
		t.Error("timing should record success")
	}
}

func TestFetchWithRetry_ExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.Client(), fastRetryConfig(), nil)
	_, err := c.FetchWithRetry(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error should be *FetchError, got %T", err)
	}
	if len(fe.Timing.Attempts) != 3 {
		t.Errorf("recorded attempts = %d, want 3", len(fe.Timing.Attempts))
	}
	if !errors.Is(err, ErrServerStatus) {
		t.Errorf("error should wrap ErrServerStatus, got %v", err)
	}
}

func TestFetchWithRetry_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.Client(), fastRetryConfig(), nil)
	_, err := c.FetchWithRetry(context.Background(), srv.URL)
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("error should wrap ErrBadStatus, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("network calls = %d, want 1 (4xx must not retry)", got)
	}
}

func TestFetchWithRetry_PreCancelledMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(srv.Client(), fastRetryConfig(), nil)
	_, err := c.FetchWithRetry(ctx, srv.URL)
	if !IsCancellation(err) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("network calls = %d, want 0", got)
	}
}

func TestFetchWithRetry_CancelDuringRetriesStopsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	config := RetryConfig{Retries: 5, BackoffBase: 50 * time.Millisecond, AttemptTimeout: time.Second}
	c := New(srv.Client(), config, nil)

	// Cancel while the coordinator is waiting out the first backoff.
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.FetchWithRetry(ctx, srv.URL)
	if !IsCancellation(err) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got > 2 {
		t.Errorf("network calls = %d, want <= 2 (no further attempts after cancel)", got)
	}
	var fe *FetchError
	if errors.As(err, &fe) && !fe.Timing.Aborted {
		t.Error("timing should record the abort")
	}
}

func TestFetchWithRetry_AttemptTimeoutRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			time.Sleep(200 * time.Millisecond) // exceed the attempt timer
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	config := RetryConfig{Retries: 1, BackoffBase: time.Millisecond, AttemptTimeout: 50 * time.Millisecond}
	c := New(srv.Client(), config, nil)
	result, err := c.FetchWithRetry(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Timing.Attempts) != 2 {
		t.Fatalf("recorded attempts = %d, want 2", len(result.Timing.Attempts))
	}
	if !result.Timing.Attempts[0].TimedOut {
		t.Error("first attempt should be marked timed out")
	}
}

func TestFetchDeduped_SingleNetworkCall(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(`{"shared":true}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), fastRetryConfig(), nil)
	key := query.ViewQuery{VisibleTarget: 10, Budget: 50}.Key()

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.FetchDeduped(context.Background(), key, srv.URL)
		}(i)
	}

	// Let all callers pile onto the in-flight entry before releasing.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("network calls = %d, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error: %v", i, errs[i])
		}
		if string(results[i].Body) != `{"shared":true}` {
			t.Errorf("caller %d got body %q", i, results[i].Body)
		}
	}
}

func TestFetchDeduped_EntryRemovedAfterSettle(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := New(srv.Client(), fastRetryConfig(), nil)
	key := query.ViewQuery{VisibleTarget: 10, Budget: 50}.Key()

	if _, err := c.FetchDeduped(context.Background(), key, srv.URL); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := c.FetchDeduped(context.Background(), key, srv.URL); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("network calls = %d, want 2 (entry must not outlive settle)", got)
	}
}
