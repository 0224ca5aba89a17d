package billsync

import (
	"net/http"
	"time"
)

// Option is a functional option for client configuration.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the default timeout for requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithAuthToken sets the operator API key sent as a Bearer token.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithRetry sets how many times a GET is attempted before giving up, and the
// first delay between attempts. tries below 1 disables retries.
func WithRetry(tries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxTries = uint(max(tries, 1))
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}
