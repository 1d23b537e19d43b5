package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/hiketracker/hiketracker/tracker/internal/api"
)

const defaultTimeout = 10 * time.Second

// Client talks to a running tracker.
type Client struct {
	base   *url.URL
	http   *http.Client
	header string
	key    string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key in header on every request.
func WithAPIKey(header, key string) Option {
	return func(c *Client) {
		c.header = header
		c.key = key
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client for the tracker at addr (e.g. http://localhost:8080).
func New(addr string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(addr, "/"))
	if err != nil {
		return nil, fmt.Errorf("status: parse addr %q: %w", addr, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("status: addr %q must be an http(s) URL", addr)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: defaultTimeout},
		header: "X-API-Key",
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Status fetches GET /api/v1/status.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.getJSON(ctx, "/api/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Photos fetches GET /api/v1/photos. limit <= 0 returns every result.
func (c *Client) Photos(ctx context.Context, limit int) (*api.PhotosResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out api.PhotosResponse
	if err := c.getJSON(ctx, "/api/v1/photos", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Metrics scrapes /metrics and summarizes the tracker's own series.
func (c *Client) Metrics(ctx context.Context) (*Report, error) {
	req, err := c.newRequest(ctx, "/metrics", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status: scrape metrics: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status: scrape metrics: unexpected status %d", resp.StatusCode)
	}

	mfs, err := parseMetrics(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return buildReport(mfs), nil
}

// --- internal ---------------------------------------------------------------

func (c *Client) newRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("status: build request: %w", err)
	}
	if c.key != "" {
		req.Header.Set(c.header, c.key)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v interface{}) error {
	req, err := c.newRequest(ctx, path, q)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("status: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("status: get %s: %d: %s", path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("status: get %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("status: decode %s: %w", path, err)
	}
	return nil
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}
