package dns

import (
	"errors"
	"strings"
)

// NoExpirationTTL is the TTL sentinel sent on every created record. The record
// store keeps such records until they are deleted.
const NoExpirationTTL = -1

// ErrIncompleteDraft is returned by Draft.Validate when the domain or the IP
// is empty after trimming.
var ErrIncompleteDraft = errors.New("domain and IP are required")

// Record is a single domain to IPv4/IPv6 address mapping as held by the
// record store. Domain is the unique key.
type Record struct {
	Domain string `json:"domain"`
	IP     string `json:"ip"`
	TTL    int    `json:"ttl,omitempty"`
}

// Draft is the operator's unsubmitted input for a new record.
type Draft struct {
	Domain string
	IP     string
}

// Normalize returns a copy of the draft with surrounding whitespace removed.
func (d Draft) Normalize() Draft {
	return Draft{
		Domain: strings.TrimSpace(d.Domain),
		IP:     strings.TrimSpace(d.IP),
	}
}

// Validate reports ErrIncompleteDraft unless both fields are non-empty after
// trimming. The record store owns every other rule.
func (d Draft) Validate() error {
	n := d.Normalize()
	if n.Domain == "" || n.IP == "" {
		return ErrIncompleteDraft
	}
	return nil
}

// Record builds the create payload: trimmed fields and the no-expiration TTL.
func (d Draft) Record() Record {
	n := d.Normalize()
	return Record{
		Domain: n.Domain,
		IP:     n.IP,
		TTL:    NoExpirationTTL,
	}
}

// IsZero reports whether nothing has been typed into the draft.
func (d Draft) IsZero() bool {
	return d.Domain == "" && d.IP == ""
}
