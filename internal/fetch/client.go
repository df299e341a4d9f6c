package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Common errors.
var (
	ErrUnreachable      = errors.New("fetch: backend unreachable")
	ErrMalformedRequest = errors.New("fetch: malformed request")
)

// Options configures the fetch client.
type Options struct {
	// Timeout for individual requests.
	// Default: 60s
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first.
	// Zero disables retries; DefaultOptions sets 5 (six attempts in
	// total).
	MaxRetries int

	// Backoff is the fixed wait between attempts.
	// Default: 10s
	Backoff time.Duration

	// Logger receives per-attempt diagnostics at debug level.
	// Default: no logging
	Logger *zap.Logger
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:    60 * time.Second,
		MaxRetries: 5,
		Backoff:    10 * time.Second,
	}
}

// Client is an HTTP client with bounded retries and fixed backoff.
type Client struct {
	client *http.Client
	opts   Options
	logger *zap.Logger
}

// NewClient creates a new fetch client with the given options.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff == 0 {
		opts.Backoff = DefaultOptions().Backoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts:   opts,
		logger: logger,
	}
}

// Get performs a GET request with retries. Status codes listed in
// acceptable are returned to the caller even though they are not
// successes; any other non-2xx status is retried. Once retries are
// exhausted the last received response is returned so the caller can
// inspect it. The caller owns the response body.
func (c *Client) Get(ctx context.Context, rawurl string, acceptable ...int) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, rawurl, nil, acceptable)
}

// PostForm performs a form-encoded POST request with the same retry
// semantics as Get.
func (c *Client) PostForm(ctx context.Context, rawurl string, form url.Values) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, rawurl, form, nil)
}

func (c *Client) do(ctx context.Context, method, rawurl string, form url.Values, acceptable []int) (*http.Response, error) {
	if u, err := url.Parse(rawurl); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	} else if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no scheme or host", ErrMalformedRequest, rawurl)
	}

	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx); err != nil {
				if lastResp != nil {
					lastResp.Body.Close()
				}
				return nil, err
			}
		}

		req, err := c.newRequest(ctx, method, rawurl, form)
		if err != nil {
			if lastResp != nil {
				lastResp.Body.Close()
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Debug("request attempt failed",
				zap.String("url", rawurl),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		if (resp.StatusCode >= 200 && resp.StatusCode < 300) || containsCode(acceptable, resp.StatusCode) {
			if lastResp != nil {
				lastResp.Body.Close()
			}
			return resp, nil
		}

		// Unacceptable status: keep the response around in case this
		// was the final attempt, the caller gets to read it then.
		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp
		c.logger.Debug("unexpected status",
			zap.String("url", rawurl),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1))
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnreachable, c.opts.MaxRetries+1, lastErr)
}

func (c *Client) newRequest(ctx context.Context, method, rawurl string, form url.Values) (*http.Request, error) {
	if form == nil {
		return http.NewRequestWithContext(ctx, method, rawurl, nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawurl, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// backoff waits the configured fixed interval or until the context is done.
func (c *Client) backoff(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.opts.Backoff):
		return nil
	}
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
