// Package httpclient provides the retrying HTTP client used by every
// outbound API call and image download.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/deepresearch/internal/backoff"
	"github.com/lepinkainen/deepresearch/internal/ratelimit"
)

const (
	defaultRetries   = 3
	defaultBackoff   = 2000 * time.Millisecond
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "deepresearch/1.0 (+https://github.com/lepinkainen/deepresearch)"
	maxBodyBytes     = 32 << 20
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client issues GET requests with a fixed number of attempts and a linear
// backoff of base × attempt between them. There is no circuit breaker.
type Client struct {
	httpClient HTTPDoer
	retries    int
	backoff    time.Duration
	timeout    time.Duration
	userAgent  string
	limiter    *ratelimit.Limiter
	sleep      backoff.Sleeper
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithRetries sets the total number of attempts.
func WithRetries(n int) Option {
	return func(client *Client) {
		if n > 0 {
			client.retries = n
		}
	}
}

// WithBackoff sets the base delay multiplied by the attempt number.
func WithBackoff(base time.Duration) Option {
	return func(client *Client) {
		if base >= 0 {
			client.backoff = base
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		if d > 0 {
			client.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		if ua != "" {
			client.userAgent = ua
		}
	}
}

// WithLimiter makes every attempt wait on l first.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(client *Client) {
		client.limiter = l
	}
}

// WithSleeper replaces the backoff sleep, mainly for tests.
func WithSleeper(s backoff.Sleeper) Option {
	return func(client *Client) {
		if s != nil {
			client.sleep = s
		}
	}
}

// New creates a Client with 3 attempts, 2s linear backoff and a 15s
// per-attempt timeout unless overridden.
func New(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{},
		retries:    defaultRetries,
		backoff:    defaultBackoff,
		timeout:    defaultTimeout,
		userAgent:  defaultUserAgent,
		sleep:      backoff.Sleep,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Get fetches url and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.GetWithRetries(ctx, url, c.retries)
}

// GetWithRetries is Get with a per-call attempt count.
func (c *Client) GetWithRetries(ctx context.Context, url string, retries int) ([]byte, error) {
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		body, err := c.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == retries {
			break
		}

		delay := backoff.Linear(c.backoff, attempt)
		slog.Debug("Request failed, retrying", "url", url, "attempt", attempt, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("request %s cancelled during backoff: %w", url, err)
		}
	}

	return nil, fmt.Errorf("request %s failed after %d attempts: %w", url, retries, lastErr)
}

// GetJSON fetches url and decodes the JSON body into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, image/*;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
