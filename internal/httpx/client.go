// Package httpx provides the bounded HTTP client used by every external
// source adapter. It applies a fixed per-instance timeout, retries transient
// transport failures with exponential backoff, and raises on non-2xx.
//
// Application-level rejections (4xx/5xx) are never retried: callers need to
// distinguish "transport failure" from "remote rejected".
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3

	backoffInitialInterval = 1 * time.Second
	backoffMaxInterval     = 10 * time.Second

	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

// HTTPError carries the status code and body of a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected http status %d: %s", e.StatusCode, truncateBody(e.Body))
}

const maxErrBodyLen = 200

func truncateBody(body string) string {
	if len(body) > maxErrBodyLen {
		return body[:maxErrBodyLen] + "..."
	}

	return body
}

// Client issues outbound GET/POST requests with a fixed timeout and bounded
// retries. It performs no caching.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// Config holds construction options for a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: retries,
	}
}

// GetJSON performs a GET request and returns the raw response body.
// Transport errors are retried; an *HTTPError is returned immediately on a
// non-2xx status.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, headers map[string]string) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	return c.do(ctx, http.MethodGet, requestURL, nil, headers)
}

// PostJSON performs a POST request with a JSON-encoded body and returns the
// raw response body.
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}, headers map[string]string) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	return c.do(ctx, http.MethodPost, c.baseURL+path, encoded, headers)
}

func (c *Client) do(ctx context.Context, method, requestURL string, body []byte, headers map[string]string) ([]byte, error) {
	var result []byte

	attempt := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		if body != nil {
			req.Header.Set(headerContentType, contentTypeJSON)
		}

		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Transport failure: retryable.
			return fmt.Errorf("%s %s: %w", method, requestURL, err)
		}

		defer func() {
			_ = resp.Body.Close()
		}()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			// Remote rejected: not retryable.
			return backoff.Permanent(&HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)})
		}

		result = respBody

		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackoff(), uint64(c.maxRetries-1)), ctx)

	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, err
	}

	return result, nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffInitialInterval
	b.MaxInterval = backoffMaxInterval

	return b
}
