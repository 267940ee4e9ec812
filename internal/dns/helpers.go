package dns

import (
	"strings"
)

// SplitHostname splits an FQDN into its first label and the parent domain.
// e.g. "app.example.com" → ("app", "example.com")
// e.g. "sub.app.example.com" → ("sub", "app.example.com")
// e.g. "router" → ("router", "")
func SplitHostname(fqdn string) (hostname, domain string) {
	fqdn = strings.TrimSuffix(fqdn, ".")
	parts := strings.SplitN(fqdn, ".", 2)
	if len(parts) < 2 {
		return fqdn, ""
	}
	return parts[0], parts[1]
}

// JoinHostname is the inverse of SplitHostname. An empty hostname yields the
// bare domain.
func JoinHostname(hostname, domain string) string {
	switch {
	case hostname == "":
		return domain
	case domain == "":
		return hostname
	}
	return hostname + "." + domain
}
