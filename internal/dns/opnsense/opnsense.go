// Package opnsense stores A-records as OPNsense Unbound host overrides.
package opnsense

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/imroc/req/v3"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

const description = "managed by yk-dns-console"

func init() {
	dns.Register("opnsense", func(log logr.Logger, settings map[string]string) (dns.Store, error) {
		return New(log, settings)
	})
}

// Store implements dns.Store for OPNsense Unbound DNS.
type Store struct {
	baseURL string
	client  *req.Client
	log     logr.Logger
}

// New creates an OPNsense record store from the given settings map.
// Required settings: base_url, api_key, api_secret.
// Optional settings: skip_tls_verify (default false).
func New(log logr.Logger, settings map[string]string) (*Store, error) {
	baseURL := settings["base_url"]
	if baseURL == "" {
		return nil, fmt.Errorf("opnsense: missing required setting 'base_url'")
	}
	apiKey := settings["api_key"]
	if apiKey == "" {
		return nil, fmt.Errorf("opnsense: missing required setting 'api_key'")
	}
	apiSecret := settings["api_secret"]
	if apiSecret == "" {
		return nil, fmt.Errorf("opnsense: missing required setting 'api_secret'")
	}

	c := req.C().
		SetTimeout(0).
		SetLogger(dns.HTTPLogger{Log: log}).
		SetCommonBasicAuth(apiKey, apiSecret)
	if v := settings["skip_tls_verify"]; v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("opnsense: invalid skip_tls_verify %q: %w", v, err)
		}
		if skip {
			c.EnableInsecureSkipVerify()
		}
	}

	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  c,
		log:     log,
	}, nil
}

// call executes a request against the OPNsense API and decodes the response
// into out. Non-200 answers are reported as logical failures.
func (s *Store) call(ctx context.Context, op, method, path string, body, out interface{}) error {
	r := s.client.R().SetContext(ctx)
	if body != nil {
		r.SetBodyJsonMarshal(body)
	}

	resp, err := r.Send(method, s.baseURL+"/"+strings.TrimLeft(path, "/"))
	if err != nil {
		return &dns.TransportFailure{Op: op, Err: fmt.Errorf("opnsense: %s %s: %w", method, path, err)}
	}
	if resp.StatusCode != http.StatusOK {
		s.log.Info("unexpected response", "path", path, "status", resp.StatusCode, "body", resp.String())
		return &dns.LogicalFailure{Op: op, StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := resp.Unmarshal(out); err != nil {
		return &dns.TransportFailure{Op: op, Err: fmt.Errorf("opnsense: decode %s response: %w", path, err)}
	}
	return nil
}

// reconfigure tells OPNsense to apply DNS changes.
func (s *Store) reconfigure(ctx context.Context, op string) error {
	var result struct {
		Status string `json:"status"`
	}
	if err := s.call(ctx, op, http.MethodPost, "unbound/service/reconfigure", struct{}{}, &result); err != nil {
		return err
	}
	s.log.V(1).Info("reconfigure completed", "status", result.Status)
	return nil
}

// searchResponse is the shape returned by searchHostOverride.
type searchResponse struct {
	Rows []hostRow `json:"rows"`
}

// hostRow represents a single host override row from the search response.
type hostRow struct {
	UUID     string `json:"uuid"`
	Enabled  string `json:"enabled"`
	Hostname string `json:"hostname"`
	Domain   string `json:"domain"`
	RR       string `json:"rr"`
	Server   string `json:"server"`
}

func (r hostRow) isA() bool {
	return strings.EqualFold(r.RR, "A") && r.Enabled != "0"
}

func (s *Store) search(ctx context.Context, op string) ([]hostRow, error) {
	var sr searchResponse
	if err := s.call(ctx, op, http.MethodGet, "unbound/settings/searchHostOverride", nil, &sr); err != nil {
		return nil, err
	}
	return sr.Rows, nil
}

// findOverride returns the UUID of the A override for fqdn, or "" if none.
func (s *Store) findOverride(ctx context.Context, op, fqdn string) (string, error) {
	rows, err := s.search(ctx, op)
	if err != nil {
		return "", err
	}

	host, domain := dns.SplitHostname(fqdn)
	for _, row := range rows {
		if row.isA() && strings.EqualFold(row.Hostname, host) && strings.EqualFold(row.Domain, domain) {
			return row.UUID, nil
		}
	}
	return "", nil
}

// List returns enabled A overrides in the order OPNsense reports them.
// Host overrides carry no TTL, so every record reports no expiration.
func (s *Store) List(ctx context.Context) ([]dns.Record, error) {
	rows, err := s.search(ctx, dns.OpList)
	if err != nil {
		return nil, err
	}

	records := make([]dns.Record, 0, len(rows))
	for _, row := range rows {
		if !row.isA() {
			continue
		}
		records = append(records, dns.Record{
			Domain: dns.JoinHostname(row.Hostname, row.Domain),
			IP:     row.Server,
			TTL:    dns.NoExpirationTTL,
		})
	}
	return records, nil
}

// Create adds a host override for record, replacing an existing one for the
// same domain.
func (s *Store) Create(ctx context.Context, record dns.Record) error {
	s.log.Info("creating record", "domain", record.Domain, "ip", record.IP)

	host, domain := dns.SplitHostname(record.Domain)
	if domain == "" {
		return &dns.LogicalFailure{Op: dns.OpCreate, Message: "Invalid domain name"}
	}

	uuid, err := s.findOverride(ctx, dns.OpCreate, record.Domain)
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"host": map[string]string{
			"enabled":     "1",
			"hostname":    host,
			"domain":      domain,
			"rr":          "A",
			"server":      record.IP,
			"description": description,
			"mxprio":      "",
			"mx":          "",
		},
	}
	path := "unbound/settings/addHostOverride"
	if uuid != "" {
		path = "unbound/settings/setHostOverride/" + uuid
	}

	var result struct {
		Result string `json:"result"`
		UUID   string `json:"uuid"`
	}
	if err := s.call(ctx, dns.OpCreate, http.MethodPost, path, body, &result); err != nil {
		return err
	}
	if result.Result != "saved" {
		s.log.Info("host override not saved", "result", result.Result)
		return &dns.LogicalFailure{Op: dns.OpCreate, StatusCode: http.StatusOK}
	}

	s.log.Info("record saved", "uuid", result.UUID, "replaced", uuid != "")
	return s.reconfigure(ctx, dns.OpCreate)
}

// Delete removes the A override for domain.
func (s *Store) Delete(ctx context.Context, domain string) error {
	s.log.Info("deleting record", "domain", domain)

	uuid, err := s.findOverride(ctx, dns.OpDelete, domain)
	if err != nil {
		return err
	}
	if uuid == "" {
		return &dns.LogicalFailure{Op: dns.OpDelete, Message: "DNS record not found", StatusCode: http.StatusNotFound}
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := s.call(ctx, dns.OpDelete, http.MethodPost, "unbound/settings/delHostOverride/"+uuid, struct{}{}, &result); err != nil {
		return err
	}
	if result.Result != "deleted" {
		s.log.Info("host override not deleted", "result", result.Result)
		return &dns.LogicalFailure{Op: dns.OpDelete, StatusCode: http.StatusOK}
	}

	s.log.Info("record deleted", "uuid", uuid)
	return s.reconfigure(ctx, dns.OpDelete)
}
