// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func testClient(opts Options) *Client {
	opts.RequestsPerSecond = 0 // no limiter in tests
	return NewClientWithHTTP(&http.Client{}, opts)
}

func TestDo_RetriesServerErrorsThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	var gaps []time.Duration
	var last time.Time

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		if !last.IsZero() {
			gaps = append(gaps, now.Sub(last))
		}
		last = now

		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	base := 20 * time.Millisecond
	client := testClient(Options{MaxAttempts: 3, BaseDelay: base, MaxDelay: time.Second})

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}

	// Delay schedule: base, then 2*base. Allow generous upper slack for CI.
	if len(gaps) != 2 {
		t.Fatalf("gaps = %v, want 2 entries", gaps)
	}
	if gaps[0] < base {
		t.Errorf("first backoff %v shorter than base %v", gaps[0], base)
	}
	if gaps[1] < 2*base {
		t.Errorf("second backoff %v shorter than 2*base %v", gaps[1], 2*base)
	}
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer server.Close()

	client := testClient(Options{MaxAttempts: 3, BaseDelay: time.Millisecond})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	_, err := client.Do(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want HTTPError 400", err)
	}
}

// errRoundTripper fails every request with a fixed error.
type errRoundTripper struct {
	attempts *atomic.Int32
	err      error
}

func (rt errRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	rt.attempts.Add(1)
	return nil, rt.err
}

func TestDo_DoesNotRetryPermanentNetErrors(t *testing.T) {
	var attempts atomic.Int32
	hc := &http.Client{Transport: errRoundTripper{
		attempts: &attempts,
		err:      errors.New("unsupported protocol scheme \"foo\""),
	}}
	client := NewClientWithHTTP(hc, Options{MaxAttempts: 3, BaseDelay: time.Millisecond})

	req, _ := http.NewRequest(http.MethodGet, "http://relay.invalid", nil)
	_, err := client.Do(context.Background(), req)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("attempts = %d, want 1: permanent faults must not be retried", got)
	}
}

func TestDo_RetriesConnectionResets(t *testing.T) {
	var attempts atomic.Int32
	hc := &http.Client{Transport: errRoundTripper{
		attempts: &attempts,
		err:      syscall.ECONNRESET,
	}}
	client := NewClientWithHTTP(hc, Options{MaxAttempts: 3, BaseDelay: time.Millisecond})

	req, _ := http.NewRequest(http.MethodGet, "http://relay.invalid", nil)
	_, err := client.Do(context.Background(), req)
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestDo_ExhaustionWrapsLastError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient(Options{MaxAttempts: 2, BaseDelay: time.Millisecond})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	_, err := client.Do(context.Background(), req)
	if !errors.Is(err, ErrMaxAttempts) {
		t.Fatalf("err = %v, want ErrMaxAttempts", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusBadGateway {
		t.Fatalf("err = %v, want wrapped 502", err)
	}
}

func TestDo_RateLimitMatchesSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(Options{MaxAttempts: 2, BaseDelay: time.Millisecond})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	_, err := client.Do(context.Background(), req)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited match", err)
	}
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := testClient(Options{MaxAttempts: 5, BaseDelay: 5 * time.Second})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Do(ctx, req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cancel took %v, backoff wait was not interrupted", elapsed)
	}
}

func TestDo_ReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(Options{MaxAttempts: 3, BaseDelay: time.Millisecond})
	req, err := NewJSONRequest(context.Background(), server.URL, []byte(`{"text":"hello"}`))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("got %d requests, want 2", len(bodies))
	}
	for i, b := range bodies {
		if b != `{"text":"hello"}` {
			t.Errorf("attempt %d body = %q", i, b)
		}
	}
}
