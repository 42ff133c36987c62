// Package github is a small GitHub REST client used as the diff provider.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/gamebot/pkg/logger"
	"github.com/okian/gamebot/pkg/metrics"
)

// Default client configuration constants.
const (
	DefaultBaseURL   = "https://api.github.com"
	defaultTimeout   = 10 * time.Second
	defaultUA        = "gamebot"
	defaultMaxRetry  = 3
	defaultRetryBase = 500 * time.Millisecond
	maxRetryWait     = 30 * time.Second
	maxErrorBody     = 2048
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, such as GitHub
// Enterprise or a test server. Compare URLs under DefaultBaseURL are
// rewritten onto it.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithToken sets the token sent as Authorization. Empty means anonymous.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMaxRetries bounds retries of transient and rate limited responses.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryBase sets the first backoff interval; later ones double.
func WithRetryBase(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryBase = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client issues authenticated GitHub requests with retries and rate limit
// handling.
type Client struct {
	http       *http.Client
	baseURL    string
	token      string
	userAgent  string
	maxRetries int
	retryBase  time.Duration
	logger     logger.Logger
	now        func() time.Time
	onRetry    func(wait time.Duration)
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		userAgent:  defaultUA,
		maxRetries: defaultMaxRetry,
		retryBase:  defaultRetryBase,
		logger:     logger.Named("github"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET for an absolute URL and returns a 2xx response. The
// caller closes the body. Transport errors, 502/503/504 and rate limited
// responses are retried with exponential backoff; a rate limit wait
// announced by the server replaces the backoff interval.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	url = c.rebase(url)
	attempt := 0
	op := func() (*http.Response, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("github new request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		if err != nil {
			err = fmt.Errorf("%w: GET %s: %w", ErrUnavailable, url, err)
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		rem, reset, retryAfter := parseRateHeaders(resp.Header)
		c.logger.Debug(ctx, "github http response",
			logger.String("url", url),
			logger.Int("status", resp.StatusCode),
			logger.Int("attempt", attempt),
			logger.Duration("latency", c.now().Sub(start)),
			logger.Int("rate_remaining", rem),
		)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode == http.StatusForbidden && (rem == 0 || retryAfter > 0):
			serr := c.statusError(url, resp)
			if wait := computeWait(rem, reset, retryAfter, c.now()); wait > 0 && attempt <= c.maxRetries {
				return nil, errors.Join(serr, &backoff.RetryAfterError{Duration: min(wait, maxRetryWait)})
			}
			return nil, serr
		case resp.StatusCode == http.StatusBadGateway,
			resp.StatusCode == http.StatusServiceUnavailable,
			resp.StatusCode == http.StatusGatewayTimeout:
			return nil, c.statusError(url, resp)
		default:
			return nil, backoff.Permanent(c.statusError(url, resp))
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBase
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = maxRetryWait

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries)+1), //nolint:gosec // maxRetries is never negative
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.retrying(ctx, attempt, wait, err)
		}),
	)
}

func (c *Client) retrying(ctx context.Context, attempt int, wait time.Duration, cause error) {
	metrics.RecordGitHubRetry()
	c.logger.Warn(ctx, "github request retrying",
		logger.Int("attempt", attempt),
		logger.Duration("retry_in", wait),
		logger.Error(cause),
	)
	if c.onRetry != nil {
		c.onRetry(wait)
	}
}

func (c *Client) statusError(url string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	return &StatusError{Method: http.MethodGet, URL: url, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// rebase moves URLs of the public API onto the configured base URL.
func (c *Client) rebase(url string) string {
	if c.baseURL == DefaultBaseURL || !strings.HasPrefix(url, DefaultBaseURL) {
		return url
	}
	return c.baseURL + strings.TrimPrefix(url, DefaultBaseURL)
}
