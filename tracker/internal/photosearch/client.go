package photosearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/config"
	"github.com/hiketracker/hiketracker/tracker/internal/metrics"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client fetches photo candidates for an area from the remote search API.
// A Client is safe for concurrent use.
type Client struct {
	cfg     config.PhotoSearchConfig
	http    *http.Client
	limiter *rate.Limiter // nil when unlimited
	cache   *cache.Cache  // nil when disabled
	metrics *metrics.Metrics

	// injectable for tests
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// Option customizes a Client.
type Option func(*Client)

// WithMetrics reports attempts and cache hits to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the HTTP client. The auth transport is not applied
// to a client supplied this way.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client for cfg. The HTTP client is built once and reused.
func New(cfg config.PhotoSearchConfig, opts ...Option) (*Client, error) {
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("photosearch: parse endpoint: %w", err)
	}
	c := &Client{
		cfg:    cfg,
		http:   buildHTTPClient(cfg.Auth),
		sleep:  sleepCtx,
		jitter: func() float64 { return rand.Float64()*2 - 1 }, //nolint:gosec // not crypto
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// searchResponse is the subset of the API response the client reads.
type searchResponse struct {
	Photos *[]struct {
		URL string `json:"photo_file_url"`
	} `json:"photos"`
}

// Fetch returns the candidates found in q. An empty slice with a nil error
// means the area has no photos.
//
// Each attempt is bounded by the configured attempt timeout; retryable
// failures are retried with exponential backoff up to MaxAttempts in total.
// Canceling ctx aborts the current attempt and any further retries.
func (c *Client) Fetch(ctx context.Context, q types.AreaQuery) ([]types.PhotoCandidate, error) {
	key := q.Key()
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			if cands, ok := v.([]types.PhotoCandidate); ok {
				c.metrics.CacheHit()
				slog.Debug("photosearch: cache hit", "area", key, "candidates", len(cands))
				return cands, nil
			}
		}
	}

	reqID := uuid.NewString()
	u := c.buildURL(q)
	bo := newBackoff(c.cfg.BackoffInitial, c.cfg.BackoffMultiplier, c.cfg.BackoffMax, c.jitter)

	var (
		lastErr    error
		lastStatus int
		kind       Kind
	)
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := bo.next()
			slog.Debug("photosearch: retrying", "request_id", reqID, "attempt", attempt, "retry_in", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, &Error{Kind: KindCanceled, Attempts: attempt - 1, Err: err}
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, &Error{Kind: KindCanceled, Attempts: attempt - 1, Err: ctx.Err()}
				}
				return nil, &Error{Kind: KindTransport, Attempts: attempt - 1, Err: fmt.Errorf("rate limit: %w", err)}
			}
		}

		cands, status, err := c.attempt(ctx, u, reqID)
		if err == nil {
			c.metrics.Attempt("ok")
			if c.cache != nil && len(cands) > 0 {
				c.cache.Set(key, cands, cache.DefaultExpiration)
			}
			return cands, nil
		}

		lastErr, lastStatus = err, status
		kind = classify(ctx, err)
		c.metrics.Attempt(kind.String())

		if kind == KindCanceled {
			return nil, &Error{Kind: kind, Attempts: attempt, Err: err}
		}
		if !retryable(kind, status) {
			return nil, &Error{Kind: kind, Attempts: attempt, Status: status, Err: err}
		}
		slog.Warn("photosearch: attempt failed",
			"request_id", reqID,
			"attempt", attempt,
			"max_attempts", c.cfg.MaxAttempts,
			"kind", kind,
			"err", err)
	}
	return nil, &Error{Kind: kind, Attempts: c.cfg.MaxAttempts, Status: lastStatus, Err: lastErr}
}

// attempt performs one bounded HTTP round trip and decodes the body.
// The returned status is 0 when no response was received.
func (c *Client) attempt(ctx context.Context, u, reqID string) ([]types.PhotoCandidate, int, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		if actx.Err() != nil && ctx.Err() == nil {
			return nil, 0, fmt.Errorf("http get: %w", context.DeadlineExceeded)
		}
		return nil, 0, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, resp.StatusCode, errStatus{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if actx.Err() != nil && ctx.Err() == nil {
			return nil, resp.StatusCode, fmt.Errorf("read body: %w", context.DeadlineExceeded)
		}
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	cands, err := decode(body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return cands, resp.StatusCode, nil
}

// errMalformed marks a body that is not a photo list.
var errMalformed = errors.New("malformed response")

// decode parses a search response. Entries without a URL are skipped.
func decode(body []byte) ([]types.PhotoCandidate, error) {
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if sr.Photos == nil {
		return nil, fmt.Errorf("%w: missing photos array", errMalformed)
	}
	cands := make([]types.PhotoCandidate, 0, len(*sr.Photos))
	for _, p := range *sr.Photos {
		if p.URL == "" {
			continue
		}
		cands = append(cands, types.PhotoCandidate{URL: p.URL})
	}
	return cands, nil
}

// buildURL appends the static and bounding box parameters to the endpoint.
func (c *Client) buildURL(q types.AreaQuery) string {
	u, _ := url.Parse(c.cfg.Endpoint) // validated in New
	v := u.Query()
	for k, val := range c.cfg.Params {
		v.Set(k, val)
	}
	bp := c.cfg.BoundsParams
	v.Set(bp.MinLon, formatCoord(q.MinLon))
	v.Set(bp.MinLat, formatCoord(q.MinLat))
	v.Set(bp.MaxLon, formatCoord(q.MaxLon))
	v.Set(bp.MaxLat, formatCoord(q.MaxLat))
	u.RawQuery = v.Encode()
	return u.String()
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// classify maps an attempt error to a Kind. ctx is the caller's context.
func classify(ctx context.Context, err error) Kind {
	switch {
	case ctx.Err() != nil:
		return KindCanceled
	case errors.Is(err, errMalformed):
		return KindMalformed
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

// retryable reports whether a failed attempt should be retried.
func retryable(k Kind, status int) bool {
	switch k {
	case KindTimeout:
		return true
	case KindTransport:
		if status == 0 {
			return true
		}
		return status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
