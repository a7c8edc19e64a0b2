// Package web fetches HTML pages the way a browser would, decoding legacy
// charsets and optionally honoring robots.txt.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
)

const maxBodyBytes = 8 << 20

// ErrDisallowed is returned when robots.txt forbids the requested path.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Options configures a Client.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client performs GET requests for listing and article pages.
type Client struct {
	http          *http.Client
	userAgent     string
	respectRobots bool
	logger        *slog.Logger

	mu     sync.Mutex
	robots map[string]*robotstxt.Group
}

// NewClient builds a client; Timeout defaults to 30s.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		http:          client,
		userAgent:     opts.UserAgent,
		respectRobots: opts.RespectRobots,
		logger:        logger,
		robots:        map[string]*robotstxt.Group{},
	}
}

// Get downloads pageURL and returns the body decoded to UTF-8.
func (c *Client) Get(ctx context.Context, pageURL string) ([]byte, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if c.respectRobots && !c.allowed(ctx, parsed) {
		return nil, fmt.Errorf("%w: %s", ErrDisallowed, pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

// allowed consults robots.txt for the host; an unreachable robots.txt allows everything.
func (c *Client) allowed(ctx context.Context, target *url.URL) bool {
	host := target.Scheme + "://" + target.Host

	c.mu.Lock()
	group, cached := c.robots[host]
	c.mu.Unlock()

	if !cached {
		group = c.loadRobots(ctx, host)
		c.mu.Lock()
		c.robots[host] = group
		c.mu.Unlock()
	}

	if group == nil {
		return true
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (c *Client) loadRobots(ctx context.Context, host string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("robots.txt unavailable", "host", host, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		c.logger.Debug("robots.txt unparsable", "host", host, "error", err)
		return nil
	}
	return data.FindGroup(c.userAgent)
}
