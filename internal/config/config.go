package config

import (
	"fmt"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"
)

// DomainMap maps domains to the IPs their A-records should carry.
type DomainMap struct {
	entries map[string]string
}

// Entry is a single domain to IP mapping.
type Entry struct {
	Domain string
	IP     string
}

// LoadDomainMap reads a YAML file mapping domains to IPs.
func LoadDomainMap(path string) (*DomainMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading domain map file: %w", err)
	}

	entries := make(map[string]string)
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing domain map file: %w", err)
	}

	return &DomainMap{entries: entries}, nil
}

// Entries returns all mappings sorted by domain.
func (dm *DomainMap) Entries() []Entry {
	out := make([]Entry, 0, len(dm.entries))
	for _, d := range dm.Domains() {
		out = append(out, Entry{Domain: d, IP: dm.entries[d]})
	}
	return out
}

// Domains returns all configured domains, sorted.
func (dm *DomainMap) Domains() []string {
	domains := make([]string, 0, len(dm.entries))
	for d := range dm.entries {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}
