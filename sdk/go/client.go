// Package billsync is the Go client for the billsync HTTP API.
package billsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultBaseURL   = "http://localhost:8080/api/v1"
	defaultTimeout   = 15 * time.Minute
	defaultUserAgent = "billsync-go-sdk/1.0.0"
	defaultMaxTries  = 3
)

// Client is the main API client for billsync.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	authToken  string
	userAgent  string
	maxTries   uint
	retryDelay time.Duration

	// Service clients
	Sync     *SyncService
	Bills    *BillService
	AutoSync *AutoSyncService
	Token    *TokenService
}

// NewClient creates a new billsync API client. baseURL includes the API
// prefix, e.g. http://localhost:8080/api/v1.
func NewClient(baseURL string, opts ...Option) *Client {
	parsedURL, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		parsedURL, _ = url.Parse(defaultBaseURL)
	}
	parsedURL.Path = strings.TrimSuffix(parsedURL.Path, "/")

	c := &Client{
		baseURL:    parsedURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		maxTries:   defaultMaxTries,
		retryDelay: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Sync = &SyncService{client: c}
	c.Bills = &BillService{client: c}
	c.AutoSync = &AutoSyncService{client: c}
	c.Token = &TokenService{client: c}

	return c
}

func (c *Client) endpoint(requestPath string, queryParams map[string]string) url.URL {
	u := c.baseURL.JoinPath(requestPath)
	q := url.Values{}
	for k, v := range queryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return *u
}

func (c *Client) newRequest(ctx context.Context, method, requestPath string, body any, queryParams map[string]string) (*http.Request, error) {
	u := c.endpoint(requestPath, queryParams)

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}

// doJSON sends one request and decodes a JSON response into result. GETs are
// retried with backoff on transport errors and on 502, 503 and 504, which
// the server returns while draining or when the billing API fails. Other
// methods start or change work on the server and run once.
func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, result any, queryParams map[string]string) error {
	operation := func() (struct{}, error) {
		err := c.roundTrip(ctx, method, requestPath, body, result, queryParams)
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	tries := uint(1)
	if method == http.MethodGet && c.maxTries > 1 {
		tries = c.maxTries
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(tries),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		return err
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, requestPath string, body, result any, queryParams map[string]string) error {
	req, err := c.newRequest(ctx, method, requestPath, body, queryParams)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return handleErrorResponse(resp)
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// transportError wraps a failure to reach the server at all.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "failed to execute request: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// buildPath joins API path segments.
func (c *Client) buildPath(segments ...string) string {
	return path.Join(segments...)
}
