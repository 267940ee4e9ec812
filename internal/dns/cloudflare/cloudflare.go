// Package cloudflare stores A-records in a Cloudflare zone.
package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

// automaticTTL is Cloudflare's "let the edge decide" TTL. It is what
// no-expiration records map to.
const automaticTTL = 1

func init() {
	dns.Register("cloudflare", func(log logr.Logger, settings map[string]string) (dns.Store, error) {
		return New(log, settings)
	})
}

// Store implements dns.Store for a single Cloudflare zone.
type Store struct {
	api  *cloudflare.API
	zone string
	log  logr.Logger

	mu     sync.Mutex
	zoneID string
}

// New creates a Cloudflare record store from the given settings map.
// Required settings: api_token, and one of zone_id or zone (the zone name,
// resolved on first use).
// Optional settings: base_url (API endpoint override).
//
// Requests are never retried.
func New(log logr.Logger, settings map[string]string) (*Store, error) {
	token := settings["api_token"]
	if token == "" {
		return nil, fmt.Errorf("cloudflare: missing required setting 'api_token'")
	}
	zoneID, zone := settings["zone_id"], settings["zone"]
	if zoneID == "" && zone == "" {
		return nil, fmt.Errorf("cloudflare: require one of [zone_id, zone]")
	}

	opts := []cloudflare.Option{cloudflare.UsingRetryPolicy(0, 0, 0)}
	if v := settings["base_url"]; v != "" {
		opts = append(opts, cloudflare.BaseURL(strings.TrimRight(v, "/")))
	}
	api, err := cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: %w", err)
	}

	return &Store{api: api, zone: zone, zoneID: zoneID, log: log}, nil
}

// apiError matches the typed errors cloudflare-go returns for 4xx answers.
type apiError interface {
	error
	ErrorMessages() []string
}

// classify maps a cloudflare-go error onto the store failure kinds.
func classify(op string, err error) error {
	var ae apiError
	if errors.As(err, &ae) {
		return &dns.LogicalFailure{Op: op, Message: strings.Join(ae.ErrorMessages(), "; ")}
	}
	return &dns.TransportFailure{Op: op, Err: fmt.Errorf("cloudflare: %w", err)}
}

func (s *Store) container(op string) (*cloudflare.ResourceContainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zoneID == "" {
		id, err := s.api.ZoneIDByName(s.zone)
		if err != nil {
			return nil, classify(op, err)
		}
		s.log.V(1).Info("resolved zone", "zone", s.zone, "id", id)
		s.zoneID = id
	}
	return cloudflare.ZoneIdentifier(s.zoneID), nil
}

func (s *Store) listA(ctx context.Context, op string, rc *cloudflare.ResourceContainer, name string) ([]cloudflare.DNSRecord, error) {
	records, _, err := s.api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{Type: "A", Name: name})
	if err != nil {
		return nil, classify(op, err)
	}
	return records, nil
}

// List returns the zone's A records in the order Cloudflare reports them.
func (s *Store) List(ctx context.Context) ([]dns.Record, error) {
	rc, err := s.container(dns.OpList)
	if err != nil {
		return nil, err
	}
	cfRecords, err := s.listA(ctx, dns.OpList, rc, "")
	if err != nil {
		return nil, err
	}

	records := make([]dns.Record, 0, len(cfRecords))
	for _, r := range cfRecords {
		ttl := r.TTL
		if ttl == automaticTTL {
			ttl = dns.NoExpirationTTL
		}
		records = append(records, dns.Record{Domain: r.Name, IP: r.Content, TTL: ttl})
	}
	return records, nil
}

// Create adds an A record. Existing A records for the same name are removed
// first so the domain stays a unique key.
func (s *Store) Create(ctx context.Context, record dns.Record) error {
	s.log.Info("creating record", "domain", record.Domain, "ip", record.IP)

	rc, err := s.container(dns.OpCreate)
	if err != nil {
		return err
	}
	existing, err := s.listA(ctx, dns.OpCreate, rc, record.Domain)
	if err != nil {
		return err
	}
	for _, r := range existing {
		s.log.Info("replacing existing record", "id", r.ID, "ip", r.Content)
		if err := s.api.DeleteDNSRecord(ctx, rc, r.ID); err != nil {
			return classify(dns.OpCreate, err)
		}
	}

	ttl := record.TTL
	if ttl <= 0 {
		ttl = automaticTTL
	}
	created, err := s.api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
		Type:    "A",
		Name:    record.Domain,
		Content: record.IP,
		TTL:     ttl,
	})
	if err != nil {
		return classify(dns.OpCreate, err)
	}

	s.log.Info("record created", "id", created.ID)
	return nil
}

// Delete removes every A record named domain.
func (s *Store) Delete(ctx context.Context, domain string) error {
	s.log.Info("deleting record", "domain", domain)

	rc, err := s.container(dns.OpDelete)
	if err != nil {
		return err
	}
	existing, err := s.listA(ctx, dns.OpDelete, rc, domain)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return &dns.LogicalFailure{Op: dns.OpDelete, Message: "DNS record not found", StatusCode: http.StatusNotFound}
	}

	for _, r := range existing {
		if err := s.api.DeleteDNSRecord(ctx, rc, r.ID); err != nil {
			return classify(dns.OpDelete, err)
		}
	}
	s.log.Info("record deleted", "domain", domain, "count", len(existing))
	return nil
}
