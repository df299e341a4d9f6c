package seafile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lysogeny/seafile-scraper/internal/fetch"
)

// Common errors.
var (
	ErrNoToken   = errors.New("seafile: share token is required")
	ErrNoBaseURL = errors.New("seafile: base URL is required")
)

// Fetcher performs HTTP requests with retries. *fetch.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string, acceptable ...int) (*http.Response, error)
	PostForm(ctx context.Context, url string, form url.Values) (*http.Response, error)
}

// Endpoints holds the URL path templates of a Seafile server. The
// {token} and {zip_token} placeholders are expanded per request.
type Endpoints struct {
	// File serves a single file for download.
	File string `yaml:"file"`

	// Listing serves the HTML listing of a folder.
	Listing string `yaml:"listing"`

	// ExportInit starts a server-side archive job.
	ExportInit string `yaml:"export_init"`

	// ExportProgress reports the state of an archive job.
	ExportProgress string `yaml:"export_progress"`

	// Archive serves a finished archive.
	Archive string `yaml:"archive"`

	// Release cancels an archive job, freeing the server slot.
	Release string `yaml:"release"`
}

// DefaultEndpoints returns the endpoint layout of a stock Seafile server.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		File:           "d/{token}/files/",
		Listing:        "d/{token}/",
		ExportInit:     "api/v2.1/share-link-zip-task/",
		ExportProgress: "api/v2.1/query-zip-progress/",
		Archive:        "seafhttp/zip/{zip_token}",
		Release:        "api/v2.1/cancel-zip-task/",
	}
}

// IsZero reports whether no endpoint is set.
func (e Endpoints) IsZero() bool {
	return e == Endpoints{}
}

// Options configures a share client.
type Options struct {
	// BaseURL is the root of the Seafile server,
	// e.g. "https://seafile.example.org".
	BaseURL string

	// Token is the share link token.
	Token string

	// Endpoints overrides the server's URL layout.
	// Default: DefaultEndpoints()
	Endpoints Endpoints

	// PollInterval is the wait between archive progress checks.
	// Default: 1s
	PollInterval time.Duration

	// Fetcher performs the HTTP requests.
	// Default: a fetch.Client with default options
	Fetcher Fetcher

	// Logger receives diagnostics.
	// Default: no logging
	Logger *zap.Logger
}

// Client reads a single share link on a Seafile server.
type Client struct {
	base         *url.URL
	token        string
	endpoints    Endpoints
	pollInterval time.Duration
	fetcher      Fetcher
	logger       *zap.Logger
}

// New creates a client for one share link.
func New(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, ErrNoToken
	}
	if opts.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("seafile: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("seafile: base URL %q has no scheme or host", opts.BaseURL)
	}
	if opts.Endpoints.IsZero() {
		opts.Endpoints = DefaultEndpoints()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewClient(fetch.DefaultOptions())
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		base:         base,
		token:        opts.Token,
		endpoints:    opts.Endpoints,
		pollInterval: opts.PollInterval,
		fetcher:      fetcher,
		logger:       logger,
	}, nil
}

// endpointURL expands an endpoint template against the client's base URL.
func (c *Client) endpointURL(template string, values url.Values, zipToken string) string {
	expanded := strings.NewReplacer(
		"{token}", c.token,
		"{zip_token}", zipToken,
	).Replace(template)

	u := *c.base
	u.Path = joinPath(c.base.Path, expanded)
	u.RawQuery = values.Encode()
	return u.String()
}

// joinPath joins URL path segments without dropping a trailing slash.
func joinPath(base, p string) string {
	if base == "" {
		base = "/"
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) fileURL(path string) string {
	return c.endpointURL(c.endpoints.File, url.Values{"p": {path}, "dl": {"1"}}, "")
}

func (c *Client) listingURL(path string) string {
	return c.endpointURL(c.endpoints.Listing, url.Values{"p": {path}, "mode": {"list"}}, "")
}

func (c *Client) exportInitURL(path string) string {
	return c.endpointURL(c.endpoints.ExportInit, url.Values{"share_link_token": {c.token}, "path": {path}}, "")
}

func (c *Client) exportProgressURL(zipToken string) string {
	return c.endpointURL(c.endpoints.ExportProgress, url.Values{"token": {zipToken}}, "")
}

func (c *Client) archiveURL(zipToken string) string {
	return c.endpointURL(c.endpoints.Archive, nil, zipToken)
}

func (c *Client) releaseURL() string {
	return c.endpointURL(c.endpoints.Release, nil, "")
}

func statusOK(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// readBody drains and closes a response body.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
