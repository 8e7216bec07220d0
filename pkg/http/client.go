package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const userAgent = "model-arena/1"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClientOption configures Client.
type ClientOption func(*Client)

// Client is an outbound JSON client for rate-limited public APIs. Calls wait
// on a token bucket, then retry transport errors, 429 and 5xx with
// exponential backoff. A Retry-After header stretches the next wait.
type Client struct {
	hc         *http.Client
	limiter    *rate.Limiter
	maxRetry   time.Duration
	newBackOff func() backoff.BackOff
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		hc:       &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(5, 5),
		maxRetry: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.newBackOff == nil {
		c.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxElapsedTime = c.maxRetry
			return b
		}
	}
	return c
}

// GetJSON issues GET rawURL?query and decodes the JSON body into dest.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, dest interface{}) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", u.Path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var (
		resp *http.Response
		hint time.Duration
	)
	op := func() error {
		req, err := build()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		r, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if r.StatusCode/100 == 2 {
			resp = r
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(r.Body, 512))
		_ = r.Body.Close()
		se := &StatusError{StatusCode: r.StatusCode, Body: string(body), RetryAfter: retryAfter(r.Header)}
		if !se.retryable() {
			return backoff.Permanent(se)
		}
		hint = se.RetryAfter
		return se
	}

	b := &hintedBackOff{BackOff: c.newBackOff(), hint: &hint, max: c.maxRetry}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return resp, nil
}

// retryAfter parses a delay-seconds Retry-After header.
func retryAfter(h http.Header) time.Duration {
	s := h.Get("Retry-After")
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return 0
}

// hintedBackOff waits at least as long as the server asked for, capped at max.
type hintedBackOff struct {
	backoff.BackOff
	hint *time.Duration
	max  time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	d := h.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if hint := *h.hint; hint > d {
		d = hint
		if h.max > 0 && d > h.max {
			d = h.max
		}
	}
	*h.hint = 0
	return d
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.hc.Timeout = timeout
		}
	}
}

// WithRateLimit sets the sustained requests per second, also used as burst.
func WithRateLimit(rps int) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// WithMaxRetry bounds the total time spent retrying one request.
func WithMaxRetry(d time.Duration) ClientOption {
	return func(c *Client) { c.maxRetry = d }
}

// WithBackOff overrides the retry policy.
func WithBackOff(fn func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.newBackOff = fn }
}
