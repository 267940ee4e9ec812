// Package redis stores A-records directly in the Redis database behind the
// record API: one string key per domain holding its IP.
package redis

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/redis/rueidis"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

// scanCount is the COUNT hint passed to SCAN.
const scanCount = 100

func init() {
	dns.Register("redis", func(log logr.Logger, settings map[string]string) (dns.Store, error) {
		return New(log, settings)
	})
}

// Store implements dns.Store on a Redis keyspace.
type Store struct {
	option rueidis.ClientOption
	prefix string
	log    logr.Logger

	mu     sync.Mutex
	client rueidis.Client
}

// New creates a Redis record store from the given settings map.
// Required settings: address (host:port).
// Optional settings: username, password, db (index, default 0),
// key_prefix (prepended to every domain key).
//
// The connection is opened on first use.
func New(log logr.Logger, settings map[string]string) (*Store, error) {
	addr := settings["address"]
	if addr == "" {
		return nil, fmt.Errorf("redis: missing required setting 'address'")
	}

	db := 0
	if v := settings["db"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("redis: invalid db %q", v)
		}
		db = n
	}

	return &Store{
		option: rueidis.ClientOption{
			InitAddress:  []string{addr},
			SelectDB:     db,
			Username:     settings["username"],
			Password:     settings["password"],
			DisableCache: true,
		},
		prefix: settings["key_prefix"],
		log:    log,
	}, nil
}

func (s *Store) key(domain string) string {
	return s.prefix + domain
}

func (s *Store) domain(key string) string {
	return strings.TrimPrefix(key, s.prefix)
}

func (s *Store) conn(op string) (rueidis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	c, err := rueidis.NewClient(s.option)
	if err != nil {
		return nil, &dns.TransportFailure{Op: op, Err: fmt.Errorf("redis: connect %s: %w", s.option.InitAddress[0], err)}
	}
	s.log.V(1).Info("connected", "address", s.option.InitAddress[0], "db", s.option.SelectDB)
	s.client = c
	return c, nil
}

// Close releases the connection, if one was opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	return nil
}

// matchPrefix builds a SCAN MATCH pattern selecting every key that starts
// with prefix literally.
func matchPrefix(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}

// dedupe drops repeated keys, keeping first-seen order. SCAN may return a
// key more than once.
func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func transport(op string, err error) error {
	return &dns.TransportFailure{Op: op, Err: fmt.Errorf("redis: %w", err)}
}

// List returns every key under the prefix with its value and TTL. Keys that
// vanish between SCAN and GET are skipped.
func (s *Store) List(ctx context.Context) ([]dns.Record, error) {
	c, err := s.conn(dns.OpList)
	if err != nil {
		return nil, err
	}

	var keys []string
	var cursor uint64
	for {
		entry, err := c.Do(ctx, c.B().Scan().Cursor(cursor).Match(matchPrefix(s.prefix)).Count(scanCount).Build()).AsScanEntry()
		if err != nil {
			return nil, transport(dns.OpList, err)
		}
		keys = append(keys, entry.Elements...)
		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}

	keys = dedupe(keys)
	records := make([]dns.Record, 0, len(keys))
	if len(keys) == 0 {
		return records, nil
	}

	cmds := make(rueidis.Commands, 0, 2*len(keys))
	for _, k := range keys {
		cmds = append(cmds, c.B().Get().Key(k).Build(), c.B().Ttl().Key(k).Build())
	}
	resps := c.DoMulti(ctx, cmds...)

	for i, k := range keys {
		ip, err := resps[2*i].ToString()
		if rueidis.IsRedisNil(err) {
			continue
		}
		if err != nil {
			// Non-string keys share the namespace; they are not records.
			s.log.Info("skipping key", "key", k, "reason", err.Error())
			continue
		}
		ttl, err := resps[2*i+1].AsInt64()
		if err != nil {
			return nil, transport(dns.OpList, err)
		}
		if ttl < 0 {
			ttl = dns.NoExpirationTTL
		}
		records = append(records, dns.Record{Domain: s.domain(k), IP: ip, TTL: int(ttl)})
	}
	return records, nil
}

// Create sets the domain key, overwriting any previous value. A positive TTL
// becomes the key's expiry.
func (s *Store) Create(ctx context.Context, record dns.Record) error {
	s.log.Info("creating record", "domain", record.Domain, "ip", record.IP)

	c, err := s.conn(dns.OpCreate)
	if err != nil {
		return err
	}

	set := c.B().Set().Key(s.key(record.Domain)).Value(record.IP)
	var cmd rueidis.Completed
	if record.TTL > 0 {
		cmd = set.ExSeconds(int64(record.TTL)).Build()
	} else {
		cmd = set.Build()
	}
	if err := c.Do(ctx, cmd).Error(); err != nil {
		return transport(dns.OpCreate, err)
	}
	return nil
}

// Delete removes the domain key. A missing key is reported as not found.
func (s *Store) Delete(ctx context.Context, domain string) error {
	s.log.Info("deleting record", "domain", domain)

	c, err := s.conn(dns.OpDelete)
	if err != nil {
		return err
	}

	k := s.key(domain)
	n, err := c.Do(ctx, c.B().Exists().Key(k).Build()).AsInt64()
	if err != nil {
		return transport(dns.OpDelete, err)
	}
	if n == 0 {
		return &dns.LogicalFailure{Op: dns.OpDelete, Message: "DNS record not found", StatusCode: http.StatusNotFound}
	}

	if err := c.Do(ctx, c.B().Del().Key(k).Build()).Error(); err != nil {
		return transport(dns.OpDelete, err)
	}
	return nil
}
