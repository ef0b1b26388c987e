// Package fetch is the single outbound HTTP path for every source adapter.
// It enforces a wall-clock timeout per attempt, retries only on HTTP 429
// with exponential backoff, and decodes JSON — so adapters never touch
// net/http directly and the retry policy stays uniform across sources.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Options bound a single logical fetch.
type Options struct {
	Timeout     time.Duration // per attempt, not total
	Retries     int           // extra attempts after the first, 429 only
	BackoffBase time.Duration // sleep is BackoffBase * 2^attempt
}

// DefaultOptions suit the free-tier APIs the adapters talk to.
func DefaultOptions() Options {
	return Options{
		Timeout:     15 * time.Second,
		Retries:     3,
		BackoffBase: 500 * time.Millisecond,
	}
}

// Error is the discriminated failure result of a fetch. Callers branch on
// the predicates instead of inspecting strings.
type Error struct {
	URL     string
	Status  int // 0 when the request never got a response
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a fetch failure that exhausted its
// 429 retry budget.
func IsRateLimited(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Status == http.StatusTooManyRequests
}

// IsTimeout reports whether err is a fetch attempt that hit its deadline
// or failed at the connection level.
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Timeout
}

// Client issues bounded outbound calls, rate limited per instance so one
// adapter's retries cannot starve a provider's quota.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	sleep   func(context.Context, time.Duration) error
}

// New creates a Client allowing rps requests per second with the given burst.
func New(rps float64, burst int) *Client {
	return &Client{
		// Per-attempt deadlines come from the request context.
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		sleep:   sleepCtx,
	}
}

// GetJSON fetches url and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any, opts Options) error {
	return c.do(ctx, http.MethodGet, url, nil, out, opts)
}

// PostJSON sends body as JSON to url and decodes the response into out.
// Used by the JSON-RPC adapter.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any, opts Options) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{URL: url, Err: fmt.Errorf("marshal request: %w", err)}
	}
	return c.do(ctx, http.MethodPost, url, payload, out, opts)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any, opts Options) error {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultOptions().BackoffBase
	}

	var lastErr *Error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			backoff := opts.BackoffBase * time.Duration(1<<(attempt-1))
			if err := c.sleep(ctx, backoff); err != nil {
				return lastErr
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{URL: url, Timeout: true, Err: fmt.Errorf("rate limit wait: %w", err)}
		}

		err := c.attempt(ctx, method, url, body, out, opts.Timeout)
		if err == nil {
			return nil
		}
		lastErr = err

		// Only 429 earns another attempt; everything else fails fast.
		if err.Status != http.StatusTooManyRequests {
			return err
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, url string, body []byte, out any, timeout time.Duration) *Error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &Error{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{URL: url, Timeout: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &Error{URL: url, Status: resp.StatusCode,
			Err: fmt.Errorf("unexpected status: %s", bytes.TrimSpace(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
