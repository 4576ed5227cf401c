package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Plobli/CobotChatwootSync/internal/adapters/observability"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

// Client talks to the Chatwoot account API. Responses wrap their useful part
// in a payload field on some endpoints and not on others; decode handles both.
type Client struct {
	base      string
	accountID string
	token     string
	hc        *http.Client
	rl        *rate.Limiter
}

func New(base, accountID, token string, rps int) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("chatwoot api token is required")
	}
	if accountID == "" {
		return nil, fmt.Errorf("chatwoot account id is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:      strings.TrimRight(base, "/"),
		accountID: accountID,
		token:     token,
		hc:        &http.Client{Timeout: 30 * time.Second},
		rl:        rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (c *Client) accountURL(path string) string {
	return fmt.Sprintf("%s/api/v1/accounts/%s%s", c.base, c.accountID, path)
}

// SearchContact looks a contact up by email. The search endpoint is not a
// unique index: the first match wins and a missing match returns nil.
func (c *Client) SearchContact(ctx context.Context, email string) (*domain.Contact, error) {
	var contacts []domain.Contact
	u := c.accountURL("/contacts/search?q=" + url.QueryEscape(email))
	if err := c.do(ctx, http.MethodGet, u, "contacts_search", nil, &contacts); err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

func (c *Client) CreateContact(ctx context.Context, nc domain.NewContact) (*domain.Contact, error) {
	var contact domain.Contact
	if err := c.do(ctx, http.MethodPost, c.accountURL("/contacts"), "contacts_create", nc, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *Client) UpdateContact(ctx context.Context, id int64, u domain.ContactUpdate) (*domain.Contact, error) {
	var contact domain.Contact
	path := fmt.Sprintf("/contacts/%d", id)
	if err := c.do(ctx, http.MethodPut, c.accountURL(path), "contacts_update", u, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListAttributeDefinitions returns the account's contact-attribute
// definitions (bootstrap only).
func (c *Client) ListAttributeDefinitions(ctx context.Context) ([]domain.AttributeDefinition, error) {
	var out []domain.AttributeDefinition
	u := c.accountURL("/custom_attribute_definitions?attribute_model=contact_attribute")
	if err := c.do(ctx, http.MethodGet, u, "attribute_definitions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAttributeDefinition(ctx context.Context, d domain.AttributeDefinition) error {
	body := struct {
		domain.AttributeDefinition
		AttributeModel string `json:"attribute_model"`
	}{AttributeDefinition: d, AttributeModel: "contact_attribute"}
	return c.do(ctx, http.MethodPost, c.accountURL("/custom_attribute_definitions"), "attribute_definitions", body, nil)
}

// do sends one request. Non-2xx answers surface the response body in the
// error so a rejected attribute value is diagnosable from the log line.
func (c *Client) do(ctx context.Context, method, u, endpoint string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("api_access_token", c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
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
	defer resp.Body.Close()
	observability.ObserveExternal("chatwoot", endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.UpstreamError{Service: "chatwoot", Status: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decode(resp.Body, out)
}

// decode unwraps {"payload": ...} envelopes when present, otherwise decodes
// the body directly into out.
func decode(r io.Reader, out any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var envelope struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Payload) > 0 {
		return json.Unmarshal(envelope.Payload, out)
	}
	return json.Unmarshal(raw, out)
}
