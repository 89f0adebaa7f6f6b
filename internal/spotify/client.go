// Package spotify is a hand-rolled client for the Spotify Web API.
//
// All requests go through FetchJSON, which retries transient failures
// (429, 5xx, network errors) with backoff and classifies HTTP errors
// structurally via APIError.Kind. Response types follow the Web API
// reference: https://developer.spotify.com/documentation/web-api/reference/
package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

const (
	// BaseURL is the production Spotify Web API root.
	BaseURL = "https://api.spotify.com/v1"

	// maxAttempts bounds retries: one initial request plus two retries.
	maxAttempts = 3

	defaultBaseDelay = time.Second
)

// Client issues authenticated requests against the Spotify Web API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	baseDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API root. Used by tests to point at a local
// server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithBaseDelay overrides the backoff base delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// NewClient creates a Spotify Web API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    BaseURL,
		baseDelay:  defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchJSON GETs endpoint (a path relative to the API root, including any
// query string) with the given bearer token and decodes the response into
// out.
//
// Transient failures (429, 5xx, network errors) are retried up to
// maxAttempts total. A 429 with a parseable Retry-After header waits that
// long before the next attempt; otherwise the wait is baseDelay × attempt.
// Other 4xx responses fail immediately with an *APIError. A 204 response
// leaves out untouched.
func (c *Client) FetchJSON(ctx context.Context, endpoint, token string, out any) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.retryDelay(lastErr, attempt-1)); err != nil {
				return err
			}
		}

		done, err := c.doRequest(ctx, endpoint, token, out)
		if done {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// doRequest performs one attempt. done=false means the error is retryable.
func (c *Client) doRequest(ctx context.Context, endpoint, token string, out any) (done bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return true, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level error: retryable, re-thrown as-is on exhaustion.
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return true, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			Status:     resp.StatusCode,
			Endpoint:   endpoint,
			Body:       string(body),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		return apiErr.Kind() != KindTransient, apiErr
	}

	if out == nil || len(body) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return true, fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return true, nil
}

// retryDelay picks the wait before the given retry (1-based). A 429 with a
// Retry-After header wins; everything else backs off linearly on the base
// delay.
func (c *Client) retryDelay(lastErr error, retry int) time.Duration {
	if apiErr, ok := lastErr.(*APIError); ok && apiErr.Status == http.StatusTooManyRequests {
		if apiErr.retryAfter > 0 {
			return apiErr.retryAfter
		}
	}
	return c.baseDelay * time.Duration(retry)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
