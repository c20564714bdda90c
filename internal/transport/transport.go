// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultMaxAttempts is the default number of attempts per logical request.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the backoff delay before the second attempt.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultMaxDelay caps the exponential backoff.
	DefaultMaxDelay = 10 * time.Second

	// DefaultRequestsPerSecond limits how fast new sends may start.
	DefaultRequestsPerSecond = 4
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrRateLimited indicates the relay answered 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrMaxAttempts indicates all retry attempts were exhausted.
	ErrMaxAttempts = errors.New("max attempts exceeded")
)

// HTTPError represents a non-success response from the relay.
type HTTPError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("relay error (HTTP %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("relay error (HTTP %d)", e.Status)
}

// Is allows 429 responses to match ErrRateLimited.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRateLimited && e.Status == http.StatusTooManyRequests
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options tunes the retry behavior of a Client.
type Options struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the backoff for attempt 1; attempt n waits BaseDelay*2^(n-1).
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	// Jitter adds up to 25% random slack to each backoff wait.
	Jitter bool

	// RequestsPerSecond throttles request starts (0 disables the limiter).
	RequestsPerSecond float64
}

// DefaultOptions returns the retry configuration used when none is given.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:       DefaultMaxAttempts,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		Jitter:            true,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

func (o Options) normalized() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	return o
}

// =============================================================================
// CLIENT
// =============================================================================

// Client performs relay requests with retry. Responses are streamed, so the
// underlying http.Client carries no overall timeout; the request context
// governs the lifetime of each call.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	opts    Options
}

// NewClient creates a retrying client with pooled connections.
func NewClient(opts Options) *Client {
	opts = opts.normalized()

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
			// No timeout: stream lifetime is context-controlled.
		},
		limiter: limiter,
		opts:    opts,
	}
}

// NewClientWithHTTP creates a retrying client around a caller-supplied
// http.Client. Used by tests and by callers that need custom transports.
func NewClientWithHTTP(hc *http.Client, opts Options) *Client {
	opts = opts.normalized()
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{http: hc, limiter: limiter, opts: opts}
}

// Do performs the request, retrying transient failures with exponential
// backoff. The returned response body is open and must be closed by the
// caller. On exhaustion the last error is returned wrapped in ErrMaxAttempts.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var lastErr error

	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		attemptReq, err := cloneRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(attemptReq)
		if err != nil {
			if !isRetryableNetErr(err) {
				return nil, err
			}
			lastErr = err
			continue
		}

		if retryableStatus(resp.StatusCode) {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = &HTTPError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &HTTPError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
		}

		return resp, nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrMaxAttempts, c.opts.MaxAttempts, lastErr)
}

// backoff returns the delay after the given 0-indexed failed attempt:
// BaseDelay, 2*BaseDelay, 4*BaseDelay, ... capped at MaxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.opts.BaseDelay * time.Duration(1<<uint(attempt))
	if delay > c.opts.MaxDelay {
		delay = c.opts.MaxDelay
	}
	if c.opts.Jitter && delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay) / 4))
	}
	return delay
}

// sleep waits for d or until ctx is cancelled.
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// cloneRequest produces a fresh request for a retry attempt, replaying the
// body via GetBody so each attempt sends identical bytes.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}

// NewJSONRequest builds a POST request with a replayable JSON body.
func NewJSONRequest(ctx context.Context, url string, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.ContentLength = int64(len(payload))
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// retryableStatus reports whether an HTTP status warrants another attempt.
func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// isRetryableNetErr reports whether a network-level error is transient.
// Context cancellation is never retried, and neither are permanent faults
// such as a malformed endpoint URL.
func isRetryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// http.Client wraps every failure in *url.Error, which satisfies
	// net.Error itself. Classify the fault it carries, not the wrapper.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Connection faults that surface without a net.Error wrapper.
	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		// The server closed the connection mid-exchange.
		return true
	}
	return false
}
