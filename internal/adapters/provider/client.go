// Package provider fetches review pages from the upstream review-hosting APIs.
package provider

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

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"review_sync/internal/adapters/observability"
	"review_sync/internal/domain"
)

const maxBodyBytes = 4 << 20

type Options struct {
	RPS        int
	Timeout    time.Duration // per call
	HTTPClient *http.Client
}

// Client serves one provider surface. It never retries; retry policy belongs to the scheduler.
type Client struct {
	provider domain.Provider
	base     string
	hc       *http.Client
	timeout  time.Duration
	rl       *rate.Limiter
	cb       *gobreaker.CircuitBreaker[*rawResponse]
}

var _ domain.ReviewSource = (*Client)(nil)

type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

func New(p domain.Provider, base string, opts Options) (*Client, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unknown provider %q", p)
	}
	if base == "" {
		return nil, fmt.Errorf("%s: base URL is required", p)
	}
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		provider: p,
		base:     strings.TrimRight(base, "/"),
		hc:       hc,
		timeout:  opts.Timeout,
		rl:       rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS),
		cb:       newBreaker(string(p)),
	}, nil
}

func (c *Client) Provider() domain.Provider { return c.provider }

func (c *Client) Paginated() bool { return c.provider == domain.ProviderB }

// FetchPage performs one upstream call. Non-2xx responses return *domain.UpstreamError,
// transport failures return *domain.TransportError.
func (c *Client) FetchPage(ctx context.Context, token, locationRef, pageToken string, pageSize int) (domain.Page, error) {
	if c.provider == domain.ProviderA {
		return c.fetchDetails(ctx, token, locationRef)
	}
	return c.fetchReviews(ctx, token, locationRef, pageToken, pageSize)
}

func (c *Client) fetchDetails(ctx context.Context, token, placeID string) (domain.Page, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "name,rating,user_ratings_total,reviews")
	resp, err := c.get(ctx, "details", c.base+"/details?"+q.Encode(), token)
	if err != nil {
		return domain.Page{}, err
	}

	var env struct {
		Status string         `json:"status"`
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return domain.Page{}, &domain.UpstreamError{Status: resp.status, Body: "invalid json: " + err.Error()}
	}
	// the sampled surface reports some failures inside a 200 envelope
	switch env.Status {
	case "", "OK", "ZERO_RESULTS":
	case "NOT_FOUND":
		return domain.Page{}, &domain.UpstreamError{Status: http.StatusNotFound, Body: string(resp.body)}
	default:
		return domain.Page{}, &domain.UpstreamError{Status: resp.status, Body: string(resp.body)}
	}

	page := domain.Page{Status: resp.status}
	if env.Result == nil {
		return page, nil
	}
	page.Reviews = toRecords(env.Result["reviews"])
	summary := make(map[string]any, len(env.Result))
	for k, v := range env.Result {
		if k != "reviews" {
			summary[k] = v
		}
	}
	page.Summary = summary
	return page, nil
}

func (c *Client) fetchReviews(ctx context.Context, token, locationRef, pageToken string, pageSize int) (domain.Page, error) {
	q := url.Values{}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	u := c.base + "/" + escapePath(locationRef) + "/reviews"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	resp, err := c.get(ctx, "reviews", u, token)
	if err != nil {
		return domain.Page{}, err
	}

	var body map[string]any
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return domain.Page{}, &domain.UpstreamError{Status: resp.status, Body: "invalid json: " + err.Error()}
	}
	page := domain.Page{Status: resp.status, Reviews: toRecords(body["reviews"])}
	if next, ok := body["nextPageToken"].(string); ok {
		page.NextPageToken = next
	}
	summary := map[string]any{}
	for _, k := range []string{"averageRating", "totalReviewCount", "locationName", "title"} {
		if v, ok := body[k]; ok {
			summary[k] = v
		}
	}
	if len(summary) > 0 {
		page.Summary = summary
	}
	return page, nil
}

// get performs one GET with client-side rate limiting and a bounded timeout.
func (c *Client) get(ctx context.Context, endpoint, u, token string) (*rawResponse, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, &domain.TransportError{Op: "rate limit", Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.cb.Execute(func() (*rawResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "review-sync/1.0")

		res, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()
		b, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		return &rawResponse{status: res.StatusCode, header: res.Header, body: b}, nil
	})
	if err != nil {
		observability.ObserveExternal(string(c.provider), endpoint, 0, time.Since(start))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn().Str("provider", string(c.provider)).Err(err).Msg("circuit breaker rejected request")
		}
		return nil, &domain.TransportError{Op: endpoint, Err: err}
	}
	observability.ObserveExternal(string(c.provider), endpoint, resp.status, time.Since(start))

	if resp.status < 200 || resp.status > 299 {
		body := resp.body
		if len(body) > 4096 {
			body = body[:4096]
		}
		return nil, &domain.UpstreamError{
			Status:     resp.status,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter(resp.header),
		}
	}
	return resp, nil
}

func toRecords(v any) []map[string]any {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// escapePath escapes each segment of a resource name like "accounts/1/locations/2".
func escapePath(ref string) string {
	parts := strings.Split(strings.Trim(ref, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
