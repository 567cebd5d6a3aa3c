package httpx

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// DefaultMaxRetries matches the upstream Gmail guidance for transient failures
const DefaultMaxRetries = 5

// Transport is an http.RoundTripper that retries transient failures with
// exponential backoff. Server errors (500, 503, 504) and network-level
// errors are retried; every other response passes through unchanged.
type Transport struct {
	// Base is the underlying transport. http.DefaultTransport when nil.
	Base http.RoundTripper

	// MaxRetries is the number of retries after the initial attempt.
	// Zero disables retrying.
	MaxRetries int

	// BaseDelay is the backoff unit: delay = BaseDelay * 2^attempt.
	BaseDelay time.Duration

	// MaxJitter is added to each delay as a random value in [0, MaxJitter).
	MaxJitter time.Duration

	// OnRetry, when set, is invoked before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, reason string)
}

// NewTransport creates a retrying transport with the default policy.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{
		Base:       base,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  1 * time.Second,
		MaxJitter:  1 * time.Second,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	maxRetries := t.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptReq, err := cloneRequest(req)
		if err != nil {
			return nil, err
		}

		resp, err := base.RoundTrip(attemptReq)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		var reason string
		if err != nil {
			reason = err.Error()
			lastErr = err
		} else {
			reason = fmt.Sprintf("server returned %d", resp.StatusCode)
			lastErr = &UpstreamError{StatusCode: resp.StatusCode}
			// Drain so the connection can be reused for the retry.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		if attempt == maxRetries {
			break
		}

		delay := t.backoffDelay(attempt)
		if t.OnRetry != nil {
			t.OnRetry(attempt+1, delay, reason)
		}

		if err := sleepContext(req.Context(), delay); err != nil {
			return nil, err
		}
	}

	return nil, &ExhaustedError{Attempts: maxRetries + 1, Err: lastErr}
}

// backoffDelay computes the delay before the given retry attempt.
func (t *Transport) backoffDelay(attempt int) time.Duration {
	base := t.BaseDelay
	if base <= 0 {
		base = 1 * time.Second
	}

	delay := base * (1 << attempt)

	if t.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(t.MaxJitter)))
	}

	return delay
}

// cloneRequest prepares a request for a fresh attempt, rewinding the body
// when one is present.
func cloneRequest(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}

	if req.GetBody == nil {
		return nil, fmt.Errorf("request body is not replayable")
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	out.Body = body

	return out, nil
}

// retryableStatus reports whether a status code indicates a transient
// upstream failure.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// sleepContext sleeps for d or returns early when ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
