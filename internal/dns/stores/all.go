// Package stores imports all record store packages to trigger their init() registration.
package stores

import (
	_ "github.com/yuriy-kovalchuk/yk-dns-console/internal/dns/cloudflare"
	_ "github.com/yuriy-kovalchuk/yk-dns-console/internal/dns/opnsense"
	_ "github.com/yuriy-kovalchuk/yk-dns-console/internal/dns/powerdns"
	_ "github.com/yuriy-kovalchuk/yk-dns-console/internal/dns/recordapi"
	_ "github.com/yuriy-kovalchuk/yk-dns-console/internal/dns/redis"
)
