// Package recordapi is the HTTP/JSON client of the remote record store.
package recordapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/imroc/req/v3"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

func init() {
	dns.Register("recordapi", func(log logr.Logger, settings map[string]string) (dns.Store, error) {
		return New(log, settings)
	})
}

// Client implements dns.Store against the record store REST API.
type Client struct {
	baseURL string
	client  *req.Client
	log     logr.Logger
}

// envelope is the body shape of every record store response.
type envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    []dns.Record `json:"data,omitempty"`
}

// New creates a record store client from the given settings map.
// Required settings: base_url.
// Optional settings: token (bearer auth), skip_tls_verify (default false).
//
// The client sets no request timeout of its own.
func New(log logr.Logger, settings map[string]string) (*Client, error) {
	baseURL := strings.TrimSpace(settings["base_url"])
	if baseURL == "" {
		return nil, fmt.Errorf("recordapi: missing required setting 'base_url'")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("recordapi: base_url %q must start with http:// or https://", baseURL)
	}

	skipTLS := false
	if v := settings["skip_tls_verify"]; v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("recordapi: invalid skip_tls_verify %q: %w", v, err)
		}
		skipTLS = parsed
	}

	c := req.C().
		SetTimeout(0).
		SetLogger(dns.HTTPLogger{Log: log}).
		SetCommonHeader("Accept", "application/json")
	if token := settings["token"]; token != "" {
		c.SetCommonBearerAuthToken(token)
	}
	if skipTLS {
		c.EnableInsecureSkipVerify()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  c,
		log:     log,
	}, nil
}

// BaseURL returns the normalized base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// send executes r and decodes the response envelope. HTTP status codes are
// not interpreted: the success flag of the body decides.
func (c *Client) send(ctx context.Context, op string, r *req.Request, method, path string) (*envelope, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")

	resp, err := r.SetContext(ctx).Send(method, target)
	if err != nil {
		return nil, &dns.TransportFailure{Op: op, Err: fmt.Errorf("recordapi: %s %s: %w", method, path, err)}
	}

	var env envelope
	if err := resp.Unmarshal(&env); err != nil {
		return nil, &dns.TransportFailure{Op: op, Err: fmt.Errorf("recordapi: decode %s response (status %d): %w", op, resp.StatusCode, err)}
	}
	if !env.Success {
		return nil, &dns.LogicalFailure{Op: op, Message: env.Message, StatusCode: resp.StatusCode}
	}
	return &env, nil
}

// List returns the records in the order the store reports them.
func (c *Client) List(ctx context.Context) ([]dns.Record, error) {
	c.log.V(1).Info("listing records")

	env, err := c.send(ctx, dns.OpList, c.client.R(), http.MethodGet, "records")
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []dns.Record{}, nil
	}

	c.log.V(1).Info("records listed", "count", len(env.Data))
	return env.Data, nil
}

// Create submits record as is; callers own trimming and the TTL sentinel.
func (c *Client) Create(ctx context.Context, record dns.Record) error {
	c.log.Info("creating record", "domain", record.Domain, "ip", record.IP, "ttl", record.TTL)

	r := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(record)
	if _, err := c.send(ctx, dns.OpCreate, r, http.MethodPost, "records"); err != nil {
		return err
	}

	c.log.Info("record created", "domain", record.Domain)
	return nil
}

// Delete removes the record keyed by domain. The domain is path-escaped.
func (c *Client) Delete(ctx context.Context, domain string) error {
	c.log.Info("deleting record", "domain", domain)

	path := "records/" + url.PathEscape(domain)
	if _, err := c.send(ctx, dns.OpDelete, c.client.R(), http.MethodDelete, path); err != nil {
		return err
	}

	c.log.Info("record deleted", "domain", domain)
	return nil
}
