// Package httpclient provides the HTTP client used by enumeration modules.
//
// The client performs exactly one attempt per call: retries, backoff and
// rate limiting are owned by the worker pool, so a probe's attempt count
// always matches the number of requests sent on the wire.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rfs85/DicordEnumeration/internal/platform/errors"
	"github.com/rfs85/DicordEnumeration/internal/platform/logx"
)

// browserUserAgent mimics a desktop browser; several of the probed
// endpoints answer differently to obvious tool user agents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Client is a thin wrapper around http.Client with browser-like headers
// and optional token authentication.
type Client struct {
	httpClient *http.Client
	logger     logx.Logger
	config     Config
}

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout is a transport-level safety net. Per-probe deadlines come
	// from the caller's context, so this only guards leaked requests.
	// Default: 30 seconds.
	Timeout time.Duration

	// UserAgent overrides the default browser user agent.
	UserAgent string

	// Token, when set, is sent as the Authorization header on every
	// request made through the client.
	Token string

	// Transport overrides the default transport. Used in tests.
	Transport http.RoundTripper
}

// New creates a new HTTP client with the given configuration.
func New(config Config, logger logx.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = browserUserAgent
	}

	httpClient := &http.Client{
		Timeout:   config.Timeout,
		Transport: config.Transport,
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger.With("component", "httpclient"),
		config:     config,
	}
}

// Authenticated reports whether the client carries a token.
func (c *Client) Authenticated() bool {
	return c.config.Token != ""
}

// Request performs a single HTTP request. Network failures are mapped to
// the platform error taxonomy so callers can classify them without
// inspecting transport internals.
func (c *Client) Request(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request for %s %s", method, url)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if c.config.Token != "" {
		req.Header.Set("Authorization", c.config.Token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Debug("HTTP request failed",
			"method", method,
			"url", url,
			"error", err.Error(),
			"duration_ms", duration.Milliseconds(),
		)
		return nil, classifyTransportError(ctx, err)
	}

	c.logger.Debug("HTTP response received",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.Request(ctx, http.MethodGet, url, nil, headers)
}

// Head performs a HEAD request.
func (c *Client) Head(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.Request(ctx, http.MethodHead, url, nil, headers)
}

// GetJSON is a convenience method for GET requests that expect JSON responses.
func (c *Client) GetJSON(ctx context.Context, url string) (*http.Response, error) {
	headers := map[string]string{
		"Accept": "application/json",
	}
	return c.Get(ctx, url, headers)
}

// FetchJSON performs a GET request and returns the response body as bytes.
// The response is validated for 2xx status codes.
func (c *Client) FetchJSON(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.GetJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := CheckStatus(resp); err != nil {
		resp.Body.Close()
		return nil, errors.Wrapf(err, "request to %s failed", url)
	}

	return ReadBody(resp)
}

// classifyTransportError maps transport failures to platform sentinels.
func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrTimeout, err.Error())
	}
	return errors.Wrap(errors.ErrConnectionFailed, err.Error())
}

// ReadBody reads the response body and closes it.
// This is a convenience method to ensure the body is always closed.
func ReadBody(resp *http.Response) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("response is nil")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	return body, nil
}

// CheckStatus validates the HTTP status code and returns an error if it's not successful.
func CheckStatus(resp *http.Response) error {
	if resp == nil {
		return errors.New("response is nil")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		if after := RetryAfter(resp); after > 0 {
			return errors.Wrapf(errors.ErrRateLimited, "retry after %s", after)
		}
		return errors.ErrRateLimited
	case http.StatusNotFound:
		return errors.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.ErrUnauthorized
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusBadGateway:
		return errors.ErrServiceUnavailable
	default:
		if resp.StatusCode >= 500 {
			return errors.Wrapf(errors.ErrServiceUnavailable, "HTTP %d", resp.StatusCode)
		}
		return errors.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
}

// RetryAfter parses the Retry-After header of a 429 response.
// Returns 0 when absent or unparseable.
func RetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// String returns a human-readable representation of the client configuration.
func (c *Client) String() string {
	return fmt.Sprintf("HTTPClient{timeout=%s, authenticated=%t}",
		c.config.Timeout,
		c.Authenticated(),
	)
}
