package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/pipo/pkg/buildinfo"
	"github.com/matzehuels/pipo/pkg/httputil"
	"github.com/matzehuels/pipo/pkg/observability"
)

// maxBody bounds response bodies read by GetText.
const maxBody = 8 << 20

// Client provides shared HTTP functionality for remote lookups.
// It handles caching, retry logic, and common request headers.
type Client struct {
	http    *http.Client
	cache   *httputil.Cache
	headers map[string]string
	hooks   observability.HTTPHooks
}

// NewClient creates a Client with the given cache and default headers.
// A nil cache disables caching. A User-Agent header is always sent.
func NewClient(cache *httputil.Cache, headers map[string]string) *Client {
	h := map[string]string{"User-Agent": "pipo/" + buildinfo.Version}
	for k, v := range headers {
		h[k] = v
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   cache,
		headers: h,
		hooks:   observability.NoopHTTPHooks{},
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// SetHooks installs HTTP observability hooks. nil restores the no-op.
func (c *Client) SetHooks(h observability.HTTPHooks) {
	if h == nil {
		h = observability.NoopHTTPHooks{}
	}
	c.hooks = h
}

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// fetch is retried while it returns retryable errors.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	if !refresh && c.cache != nil {
		if ok, _ := c.cache.Get(key, v); ok {
			return nil
		}
	}
	if err := httputil.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.Set(key, v)
	}
	return nil
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	body, err := c.doRequest(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()
	return json.NewDecoder(body).Decode(v)
}

// GetText performs an HTTP GET request and returns the body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.doRequest(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, maxBody))
	return string(data), err
}

// CachedText is GetText through the cache.
func (c *Client) CachedText(ctx context.Context, url string, refresh bool) (string, error) {
	var text string
	err := c.Cached(ctx, "text:"+url, refresh, &text, func() error {
		var err error
		text, err = c.GetText(ctx, url)
		return err
	})
	return text, err
}

func (c *Client) doRequest(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	host, path := req.URL.Host, req.URL.Path
	c.hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.hooks.OnError(ctx, req.Method, host, path, err)
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	c.hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests, code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
