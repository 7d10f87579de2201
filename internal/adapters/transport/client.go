// Package transport provides the long-lived HTTP client shared by all
// retrieval strategies: outbound proxy support, browser-like request
// headers, and a client-side rate limiter so concurrent acquisitions
// don't compound upstream rate limiting.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"transcriptfetch/internal/core/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Options configures the shared client. Read-only after construction.
type Options struct {
	// ProxyURL accepts http://, https:// or socks5:// proxies.
	// Empty means a direct connection.
	ProxyURL string

	// Timeout bounds a single request. Zero means 30 seconds.
	Timeout time.Duration

	// RequestsPerSecond throttles outbound requests across all
	// concurrent acquisition calls. Zero disables throttling.
	RequestsPerSecond float64
}

// Client wraps *http.Client with the pipeline's outbound policy.
type Client struct {
	hc      *http.Client
	limiter *rate.Limiter
}

// New builds the shared transport client.
func New(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", opts.ProxyURL, err)
		}
		switch u.Scheme {
		case "http", "https":
			base.Proxy = http.ProxyURL(u)
		case "socks5":
			dialer, err := xproxy.FromURL(u, xproxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("socks5 proxy %q: %w", opts.ProxyURL, err)
			}
			base.Proxy = nil
			base.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(xproxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			}
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		hc:      &http.Client{Transport: base, Timeout: timeout},
		limiter: limiter,
	}, nil
}

// Get fetches url and returns the body. Non-2xx statuses come back as
// classified errors. Headers override the browser-like defaults per
// request (User-Agent, Accept, Referer, Origin and friends).
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, "", nil, headers)
}

// Post sends a JSON body and returns the response body, with the same
// status classification as Get.
func (c *Client) Post(ctx context.Context, rawURL string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, rawURL, "application/json", body, headers)
}

func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body []byte, headers map[string]string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if ce := domain.ClassifyStatus(resp.StatusCode, rawURL); ce != nil {
		return nil, ce
	}
	return data, nil
}
