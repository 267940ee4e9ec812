// Package powerdns stores A-records in the MySQL backend of a PowerDNS
// authoritative server (the gmysql "domains" and "records" tables).
package powerdns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-sql-driver/mysql"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

// DefaultTTL is written for records created without a positive TTL;
// PowerDNS has no notion of a record that never expires.
const DefaultTTL = 86400

func init() {
	dns.Register("powerdns", func(log logr.Logger, settings map[string]string) (dns.Store, error) {
		return New(log, settings)
	})
}

// Store implements dns.Store for one PowerDNS zone.
type Store struct {
	db   *sql.DB
	zone string
	log  logr.Logger

	mu       sync.Mutex
	domainID int64
}

// New creates a PowerDNS record store from the given settings map.
// Required settings: address (host:port), database, zone.
// Optional settings: username, password.
//
// No connection is made until the first operation.
func New(log logr.Logger, settings map[string]string) (*Store, error) {
	cfg, err := mysqlConfig(settings)
	if err != nil {
		return nil, err
	}
	zone := strings.ToLower(strings.TrimSuffix(settings["zone"], "."))
	if zone == "" {
		return nil, fmt.Errorf("powerdns: missing required setting 'zone'")
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("powerdns: %w", err)
	}
	return &Store{db: sql.OpenDB(connector), zone: zone, log: log}, nil
}

func mysqlConfig(settings map[string]string) (*mysql.Config, error) {
	var missing []string
	for _, k := range []string{"address", "database"} {
		if settings[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("powerdns: missing required settings: %s", strings.Join(missing, ", "))
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = settings["address"]
	cfg.DBName = settings["database"]
	cfg.User = settings["username"]
	cfg.Passwd = settings["password"]
	return cfg, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// classify maps a database error onto the store failure kinds. Errors the
// server reported are logical; everything else is transport.
func classify(op string, err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return &dns.LogicalFailure{Op: op, Message: me.Message}
	}
	return &dns.TransportFailure{Op: op, Err: fmt.Errorf("powerdns: %w", err)}
}

// inZone reports whether name is the zone apex or below it.
func (s *Store) inZone(name string) bool {
	return name == s.zone || strings.HasSuffix(name, "."+s.zone)
}

// zoneID resolves and caches the zone's row id.
func (s *Store) zoneID(ctx context.Context, op string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.domainID != 0 {
		return s.domainID, nil
	}

	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM domains WHERE name = ?", s.zone).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &dns.LogicalFailure{Op: op, Message: fmt.Sprintf("Zone %s not found", s.zone), StatusCode: http.StatusNotFound}
	}
	if err != nil {
		return 0, classify(op, err)
	}
	s.log.V(1).Info("resolved zone", "zone", s.zone, "id", id)
	s.domainID = id
	return id, nil
}

// List returns the zone's enabled A records in insertion order.
func (s *Store) List(ctx context.Context) ([]dns.Record, error) {
	id, err := s.zoneID(ctx, dns.OpList)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, content, ttl FROM records WHERE domain_id = ? AND type = 'A' AND disabled = 0 ORDER BY id", id)
	if err != nil {
		return nil, classify(dns.OpList, err)
	}
	defer rows.Close()

	records := make([]dns.Record, 0)
	for rows.Next() {
		var r dns.Record
		var ttl sql.NullInt64
		if err := rows.Scan(&r.Domain, &r.IP, &ttl); err != nil {
			return nil, classify(dns.OpList, err)
		}
		r.TTL = dns.NoExpirationTTL
		if ttl.Valid {
			r.TTL = int(ttl.Int64)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(dns.OpList, err)
	}
	return records, nil
}

// Create replaces every A record for the domain with one pointing at the
// record's IP, in a single transaction.
func (s *Store) Create(ctx context.Context, record dns.Record) error {
	name := strings.ToLower(record.Domain)
	if !s.inZone(name) {
		return &dns.LogicalFailure{Op: dns.OpCreate, Message: fmt.Sprintf("Domain is outside zone %s", s.zone)}
	}
	s.log.Info("creating record", "domain", name, "ip", record.IP)

	id, err := s.zoneID(ctx, dns.OpCreate)
	if err != nil {
		return err
	}
	ttl := record.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(dns.OpCreate, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM records WHERE domain_id = ? AND name = ? AND type = 'A'", id, name); err != nil {
		return classify(dns.OpCreate, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO records (domain_id, type, name, content, ttl, prio, disabled) VALUES (?, 'A', ?, ?, ?, 0, 0)",
		id, name, record.IP, ttl); err != nil {
		return classify(dns.OpCreate, err)
	}
	if err := tx.Commit(); err != nil {
		return classify(dns.OpCreate, err)
	}
	return nil
}

// Delete removes the domain's A records.
func (s *Store) Delete(ctx context.Context, domain string) error {
	name := strings.ToLower(domain)
	s.log.Info("deleting record", "domain", name)

	id, err := s.zoneID(ctx, dns.OpDelete)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE domain_id = ? AND name = ? AND type = 'A'", id, name)
	if err != nil {
		return classify(dns.OpDelete, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(dns.OpDelete, err)
	}
	if n == 0 {
		return &dns.LogicalFailure{Op: dns.OpDelete, Message: "DNS record not found", StatusCode: http.StatusNotFound}
	}
	return nil
}
