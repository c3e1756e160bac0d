package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Rijughosh14/EShop/pkg/retry"
	"github.com/Rijughosh14/EShop/pkg/telemetry"
)

var ErrNotFound = errors.New("catalog resource not found")

// maxBodyBytes caps upstream responses
const maxBodyBytes = 8 << 20

// UpstreamError is a non-404 failure reported by the catalog API
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("catalog upstream returned status %d", e.StatusCode)
}

// Config holds catalog client settings
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// Transport defaults to an OTel-instrumented http.DefaultTransport
	Transport http.RoundTripper
	Retry     *retry.Config
}

// Client reads products from a dummyjson-compatible API.
// Bodies are passed through untouched.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retrier    *retry.Retrier
}

// NewClient creates a catalog client
func NewClient(cfg *Config) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = telemetry.HTTPTransport(nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
		retryCfg.MaxRetries = cfg.MaxRetries
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		retrier:    retry.New(retryCfg),
	}
}

// Products lists products with pagination
func (c *Client) Products(ctx context.Context, limit, skip int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(skip))
	return c.get(ctx, "/products", q)
}

// Product fetches a single product
func (c *Client) Product(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, "/products/"+url.PathEscape(id), nil)
}

// Search runs a full-text product search
func (c *Client) Search(ctx context.Context, query string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("q", query)
	return c.get(ctx, "/products/search", q)
}

// ByCategory lists products in one category
func (c *Client) ByCategory(ctx context.Context, category string) (json.RawMessage, error) {
	return c.get(ctx, "/products/category/"+url.PathEscape(category), nil)
}

// Categories lists category slugs
func (c *Client) Categories(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/products/category-list", nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body []byte
	result := c.retrier.Do(ctx, func(ctx context.Context) error {
		b, err := c.fetch(ctx, target)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if result.Err != nil {
		return nil, result.Cause()
	}
	return body, nil
}

// fetch performs one attempt; only network errors and 5xx/429 are retried
func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach catalog: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, retry.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &UpstreamError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(&UpstreamError{StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}
	if !json.Valid(body) {
		return nil, retry.Permanent(errors.New("catalog returned invalid JSON"))
	}
	return body, nil
}
