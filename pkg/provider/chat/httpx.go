package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// maxRetries is the number of retries after the initial attempt, so a
	// fully failing call performs maxRetries+1 HTTP requests.
	maxRetries = 3

	// baseDelay is the first backoff wait; it doubles on every further attempt.
	baseDelay = 500 * time.Millisecond
)

// OnRetry is invoked once per retry attempt with the vendor name, before the
// backoff wait. The default is a no-op; process wiring replaces it to count
// retries. Must be set before any provider traffic starts.
var OnRetry = func(ctx context.Context, vendor string) {}

// sleepFn waits for d or until ctx is cancelled. Package-level so adapter
// tests can record backoff timing without real sleeps.
var sleepFn = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// VendorError is a persistent vendor failure: a non-retryable HTTP status or
// the exhaustion of the retry budget on a retryable one. It carries the raw
// response body so operators can see what the vendor actually said.
type VendorError struct {
	Vendor string
	Status int
	Body   string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Vendor, e.Status, e.Body)
}

// RetryableDefault reports whether status is transient for OpenAI-family
// endpoints (OpenAI, Workers AI, Claude): 429 and the common 5xx gateway set.
func RetryableDefault(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// RetryableGemini is the narrower transient set the Gemini endpoint uses.
func RetryableGemini(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable:
		return true
	}
	return false
}

// PostRequest describes one JSON POST performed by [PostJSON].
type PostRequest struct {
	// Vendor names the backend in errors (e.g. "openai").
	Vendor string

	// URL is the full endpoint URL.
	URL string

	// Header holds extra request headers (auth etc.). Content-Type is set
	// automatically.
	Header http.Header

	// Body is marshalled to JSON.
	Body any

	// Retryable decides which HTTP statuses are transient. Nil means
	// [RetryableDefault].
	Retryable func(status int) bool
}

// PostJSON posts req.Body as JSON and returns the raw response body on any
// 2xx status. Transient statuses and network-level failures are retried with
// exponential backoff (500ms, 1s, 2s) up to 3 retries; everything else, and
// retry exhaustion on a transient status, yields a [*VendorError] (or the
// final network error).
//
// Every vendor adapter funnels its HTTP call through here so the retry policy
// cannot drift between them; only the Retryable predicate varies per vendor.
func PostJSON(ctx context.Context, client *http.Client, req PostRequest) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	retryable := req.Retryable
	if retryable == nil {
		retryable = RetryableDefault
	}

	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", req.Vendor, err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", req.Vendor, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, vs := range req.Header {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			// Network-level failure: no status to inspect, retry on the
			// same budget.
			lastErr = fmt.Errorf("%s: post: %w", req.Vendor, err)
			if attempt >= maxRetries {
				return nil, lastErr
			}
			if err := retryWait(ctx, attempt, req.Vendor); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%s: read response: %w", req.Vendor, readErr)
			if attempt >= maxRetries {
				return nil, lastErr
			}
			if err := retryWait(ctx, attempt, req.Vendor); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		if retryable(resp.StatusCode) && attempt < maxRetries {
			if err := retryWait(ctx, attempt, req.Vendor); err != nil {
				return nil, err
			}
			continue
		}

		return nil, &VendorError{Vendor: req.Vendor, Status: resp.StatusCode, Body: string(body)}
	}

	return nil, lastErr
}

// retryWait announces the retry through [OnRetry] and waits out the backoff.
func retryWait(ctx context.Context, attempt int, vendor string) error {
	OnRetry(ctx, vendor)
	return sleepFn(ctx, backoff(attempt))
}

// backoff returns the wait before retry number attempt+1: baseDelay × 2^attempt.
func backoff(attempt int) time.Duration {
	return baseDelay << attempt
}

// DecodeArguments parses a vendor's JSON-encoded tool arguments. Invalid JSON
// and non-object values yield an empty map, never an error: a garbled argument
// string from the model must not fail the whole reply.
func DecodeArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed == nil {
		return map[string]any{}
	}
	return parsed
}
