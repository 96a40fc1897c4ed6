// Package geo resolves source IPs to countries and converts country codes for map topologies.
package geo

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

// Alpha3 converts an ISO 3166-1 alpha-2 code to alpha-3
func Alpha3(alpha2 string) (string, bool) {
	code, ok := alpha3[strings.ToUpper(strings.TrimSpace(alpha2))]
	return code, ok
}

type prefixEntry struct {
	prefix  netip.Prefix
	country string
}

// Resolver maps IP addresses to alpha-2 country codes using a static prefix table.
// The longest matching prefix wins.
type Resolver struct {
	entries []prefixEntry // sorted by prefix length, longest first
}

// NewResolver builds a resolver from CIDR -> alpha-2 pairs
func NewResolver(table map[string]string) (*Resolver, error) {
	entries := make([]prefixEntry, 0, len(table))
	for cidr, country := range table {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid prefix %q: %w", cidr, err)
		}
		country = strings.ToUpper(strings.TrimSpace(country))
		if _, ok := alpha3[country]; !ok {
			return nil, fmt.Errorf("unknown country code %q for %s", country, cidr)
		}
		entries = append(entries, prefixEntry{prefix: prefix.Masked(), country: country})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].prefix.Bits() != entries[j].prefix.Bits() {
			return entries[i].prefix.Bits() > entries[j].prefix.Bits()
		}
		return entries[i].prefix.String() < entries[j].prefix.String()
	})

	return &Resolver{entries: entries}, nil
}

// Country returns the alpha-2 code for ip, or "" when ip is unparsable or unmatched
func (r *Resolver) Country(ip string) string {
	if r == nil {
		return ""
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return ""
	}
	addr = addr.Unmap()

	for _, e := range r.entries {
		if e.prefix.Contains(addr) {
			return e.country
		}
	}
	return ""
}
