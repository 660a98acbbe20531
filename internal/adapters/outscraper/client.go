// internal/adapters/outscraper/client.go
package outscraper

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reviewsync/internal/adapters/observability"
	"reviewsync/internal/domain"
)

const (
	service    = "outscraper"
	maxRetries = 3
)

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

var (
	ErrNotFound     = errors.New("outscraper: not found")
	ErrUnauthorized = errors.New("outscraper: unauthorized")
	ErrForbidden    = errors.New("outscraper: forbidden")
	ErrRateLimited  = errors.New("outscraper: rate limited")
)

// ---- Public API ----

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// SubmitReviewsJob starts an async reviews request for one place and returns
// its request id. It makes a single attempt; callers own retries.
func (c *Client) SubmitReviewsJob(ctx context.Context, placeID string, opts domain.JobOptions) (string, error) {
	q := url.Values{}
	q.Set("query", placeID)
	q.Set("async", "true")
	if opts.ReviewsLimit > 0 {
		q.Set("reviewsLimit", strconv.Itoa(opts.ReviewsLimit))
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if opts.Cutoff != nil {
		q.Set("cutoff", strconv.FormatInt(opts.Cutoff.Unix(), 10))
	}

	var out submitResponse
	if err := c.get(ctx, "reviews", c.base+"/maps/reviews-v3?"+q.Encode(), &out, 0); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("outscraper: submit %s: response without request id", placeID)
	}
	return out.ID, nil
}

// JobStatus fetches the state of an async request. Resolved data is flattened
// to one list of business payloads.
func (c *Client) JobStatus(ctx context.Context, requestID string) (domain.JobStatus, error) {
	var out statusResponse
	u := c.base + "/requests/" + url.PathEscape(requestID)
	if err := c.get(ctx, "requests", u, &out, maxRetries); err != nil {
		return domain.JobStatus{}, err
	}
	st := domain.JobStatus{ID: out.ID, Status: out.Status}
	if st.ID == "" {
		st.ID = requestID
	}
	if st.Resolved() {
		data, err := flatten(out.Data)
		if err != nil {
			return domain.JobStatus{}, fmt.Errorf("outscraper: decode data of %s: %w", requestID, err)
		}
		st.Data = data
	}
	return st, nil
}

// flatten accepts [[{...}], [{...}]] (one array per query) or [{...}].
func flatten(raw json.RawMessage) ([]map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []map[string]any{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		trimmed := strings.TrimSpace(string(it))
		switch {
		case strings.HasPrefix(trimmed, "["):
			var group []map[string]any
			if err := json.Unmarshal(it, &group); err != nil {
				return nil, err
			}
			out = append(out, group...)
		case strings.HasPrefix(trimmed, "{"):
			var m map[string]any
			if err := json.Unmarshal(it, &m); err != nil {
				return nil, err
			}
			out = append(out, m)
		}
	}
	return out, nil
}

// ---- Internals ----

// get performs a GET with client-side rate limiting and JSON decode into out.
// Up to retries extra attempts are made on 429 and transient 5xx, honoring
// Retry-After when provided.
func (c *Client) get(ctx context.Context, endpoint, u string, out any, retries int) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i <= retries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-KEY", c.key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "reviewsync/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(service, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < retries && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal(service, endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("outscraper: decode %s: %w", endpoint, err)
			}
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				lastErr = ErrRateLimited
			} else {
				lastErr = fmt.Errorf("outscraper: remote %d", resp.StatusCode)
			}
			if i < retries && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("outscraper: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
