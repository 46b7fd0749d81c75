package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Request is one parameterized HTTP call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
}

// Response carries the status code and the decoded JSON body.
type Response struct {
	StatusCode int
	Body       any
}

// Client issues JSON requests and classifies failures for the retry loop.
type Client struct {
	client *resty.Client
}

// NewClient creates a Client with the given per-request timeout.
// Parameters:
//   - timeout: request timeout; zero means 30s.
//
// Returns:
//   - *Client: initialized client.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "cryptoetl/1.0")
	client.SetTimeout(timeout)
	return &Client{client: client}
}

// Do performs a single attempt; it never retries on its own.
// Parameters:
//   - ctx: request context.
//   - req: method, URL, headers and query parameters.
//
// Returns:
//   - *Response: status and decoded body on 2xx.
//   - error: ErrRateLimited on 429, *StatusError on other non-2xx, a permanent error for
//     an undecodable body, or the transport error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpResp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetQueryParams(req.Query).
		Execute(method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, req.URL, err)
	}

	code := httpResp.StatusCode()
	if code == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if code < 200 || code >= 300 {
		return nil, &StatusError{Code: code, Body: truncate(string(httpResp.Body()), 256)}
	}

	var body any
	if raw := httpResp.Body(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, Permanent(fmt.Errorf("decode response body: %w", err))
		}
	}

	return &Response{StatusCode: code, Body: body}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
