package cobot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Plobli/CobotChatwootSync/internal/adapters/observability"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

const (
	maxRetries       = 3
	defaultRetryBase = 5 * time.Second
)

// cobotHost matches webhook resource URLs on the vendor domain so they can be
// rewritten onto the configured API host.
var cobotHost = regexp.MustCompile(`^https://[^/]+\.cobot\.me`)

type Client struct {
	base      string
	token     string
	hc        *http.Client
	rl        *rate.Limiter
	retryBase time.Duration
}

type Option func(*Client)

// WithRetryBase overrides the first 429 backoff interval (tests shrink it).
func WithRetryBase(d time.Duration) Option {
	return func(c *Client) { c.retryBase = d }
}

func New(base, token string, rps int, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("cobot access token is required")
	}
	if rps <= 0 {
		rps = 2
	}
	c := &Client{
		base:      strings.TrimRight(base, "/"),
		token:     token,
		hc:        &http.Client{Timeout: 30 * time.Second},
		rl:        rate.NewLimiter(rate.Limit(rps), rps),
		retryBase: defaultRetryBase,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// NormalizeURL rewrites a *.cobot.me resource URL onto the configured base
// host. Other URLs pass through unchanged.
func (c *Client) NormalizeURL(u string) string {
	return cobotHost.ReplaceAllString(u, c.base)
}

func (c *Client) GetMembershipByURL(ctx context.Context, u string) (domain.Member, error) {
	var m domain.Member
	return m, c.get(ctx, c.NormalizeURL(u), &m)
}

func (c *Client) GetMembership(ctx context.Context, id string) (domain.Member, error) {
	var m domain.Member
	return m, c.get(ctx, fmt.Sprintf("%s/api/memberships/%s", c.base, id), &m)
}

func (c *Client) GetInvoiceByURL(ctx context.Context, u string) (domain.Invoice, error) {
	var inv domain.Invoice
	return inv, c.get(ctx, c.NormalizeURL(u), &inv)
}

func (c *Client) GetBookingByURL(ctx context.Context, u string) (domain.Booking, error) {
	var b domain.Booking
	return b, c.get(ctx, c.NormalizeURL(u), &b)
}

// GetCustomFields returns the membership's labeled fields. The endpoint wraps
// them in a fields array.
func (c *Client) GetCustomFields(ctx context.Context, membershipID string) ([]domain.CustomField, error) {
	var out struct {
		Fields []domain.CustomField `json:"fields"`
	}
	if err := c.get(ctx, fmt.Sprintf("%s/api/memberships/%s/custom_fields", c.base, membershipID), &out); err != nil {
		return nil, err
	}
	return out.Fields, nil
}

func (c *Client) ListBookings(ctx context.Context, membershipID string, from, to time.Time) ([]domain.Booking, error) {
	u := fmt.Sprintf("%s/api/memberships/%s/bookings?from=%s&to=%s",
		c.base, membershipID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	var out []domain.Booking
	return out, c.get(ctx, u, &out)
}

func (c *Client) ListMemberships(ctx context.Context, perPage int) ([]domain.Member, error) {
	var out []domain.Member
	return out, c.get(ctx, fmt.Sprintf("%s/api/memberships?per_page=%d", c.base, perPage), &out)
}

func (c *Client) ListInvoices(ctx context.Context, perPage int) ([]domain.Invoice, error) {
	var out []domain.Invoice
	return out, c.get(ctx, fmt.Sprintf("%s/api/invoices?per_page=%d", c.base, perPage), &out)
}

// PutCustomFields writes field values back to the membership (reverse sync).
func (c *Client) PutCustomFields(ctx context.Context, membershipID string, fields []domain.CustomFieldValue) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/api/memberships/%s/custom_fields", c.base, membershipID)
	return c.do(ctx, http.MethodPut, u, body, nil)
}

// get performs an authenticated GET with client-side rate limiting and a
// bounded 429 retry: the backoff doubles per attempt (5s, 10s, 20s by
// default) and a still rate-limited fourth answer escalates as an upstream
// 429. Any other non-2xx fails immediately.
func (c *Client) get(ctx context.Context, u string, out any) error {
	return c.do(ctx, http.MethodGet, u, nil, out)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	endpoint := endpointLabel(u)
	for attempt := 0; ; attempt++ {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rdr)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		observability.ObserveExternal("cobot", endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			defer resp.Body.Close()
			if out == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)

		case resp.StatusCode == http.StatusTooManyRequests:
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if attempt >= maxRetries {
				return &domain.UpstreamError{Service: "cobot", Status: http.StatusTooManyRequests}
			}
			if !sleepCtx(ctx, c.retryBase<<attempt) {
				return ctx.Err()
			}

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &domain.UpstreamError{Service: "cobot", Status: resp.StatusCode, Body: string(b)}
		}
	}
}

// sleepCtx waits for d or returns false if ctx is done first.
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

// endpointLabel reduces a URL to a low-cardinality metrics label: the first
// path segment after /api/.
func endpointLabel(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return "unknown"
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, p := range parts {
		if p == "api" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}
