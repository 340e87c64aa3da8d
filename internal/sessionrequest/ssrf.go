package sessionrequest

import (
	"context"
	"net"
	"net/netip"

	"github.com/tls-oracle/prover/internal/config"
	"github.com/tls-oracle/prover/internal/oracleerr"
)

// reservedPrefixes covers ranges net.IP's own helpers don't classify:
// CGNAT, IPv4/IPv6 documentation, and benchmarking ranges. Loopback,
// private, link-local, unspecified, and multicast are covered by the
// net.IP methods in isDisallowed.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),    // CGNAT
	netip.MustParsePrefix("192.0.2.0/24"),     // TEST-NET-1
	netip.MustParsePrefix("198.51.100.0/24"),  // TEST-NET-2
	netip.MustParsePrefix("203.0.113.0/24"),   // TEST-NET-3
	netip.MustParsePrefix("198.18.0.0/15"),    // benchmarking
	netip.MustParsePrefix("2001:db8::/32"),    // IPv6 documentation
	netip.MustParsePrefix("64:ff9b:1::/48"),   // IPv4-IPv6 translation (local use)
}

// isDisallowed reports whether ip must never be connected to.
func isDisallowed(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	addr, ok := netip.AddrFromSlice(ip.To16())
	if !ok {
		return true
	}
	addr = addr.Unmap()
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	// IPv4 broadcast.
	if v4 := ip.To4(); v4 != nil && v4.Equal(net.IPv4bcast) {
		return true
	}
	return false
}

// ResolvedEndpoint is one connect candidate that survived the SSRF
// filter.
type ResolvedEndpoint struct {
	IP   net.IP
	Port int
}

// Resolver resolves hostnames to candidate addresses. Production code
// uses net.DefaultResolver; tests substitute a fake.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// ResolveAndFilter resolves r's host (or accepts it directly if it is an
// IP literal) and applies the SSRF policy from spec.md §4.1. Per the
// DNS-rebinding closure requirement, the returned address set is exactly
// what the MPC-TLS driver must connect to; it must not re-resolve.
func ResolveAndFilter(ctx context.Context, cfg *config.Config, resolver Resolver, correlationID string, req *Request) ([]ResolvedEndpoint, *oracleerr.Error) {
	host := req.URL.Hostname()

	for _, denied := range cfg.HostDenyList {
		if denied == host {
			return nil, oracleerr.New(oracleerr.SsrfBlocked, correlationID, "host is denied by policy")
		}
	}
	if len(cfg.HostAllowList) > 0 {
		allowed := false
		for _, a := range cfg.HostAllowList {
			if a == host {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, oracleerr.New(oracleerr.SsrfBlocked, correlationID, "host not in allow-list")
		}
	}

	if literal := net.ParseIP(host); literal != nil {
		if isDisallowed(literal) {
			return nil, oracleerr.New(oracleerr.SsrfBlocked, correlationID, "ip literal is in a reserved range")
		}
		return []ResolvedEndpoint{{IP: literal, Port: req.Port}}, nil
	}

	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.OriginUnreachable, correlationID, "dns resolution failed", err)
	}
	if len(addrs) == 0 {
		return nil, oracleerr.New(oracleerr.OriginUnreachable, correlationID, "dns resolution returned no addresses")
	}

	endpoints := make([]ResolvedEndpoint, 0, len(addrs))
	for _, a := range addrs {
		if isDisallowed(a.IP) {
			return nil, oracleerr.New(oracleerr.SsrfBlocked, correlationID, "a resolved address is in a reserved range")
		}
		endpoints = append(endpoints, ResolvedEndpoint{IP: a.IP, Port: req.Port})
	}
	return endpoints, nil
}

// DefaultResolver adapts *net.Resolver to the Resolver interface.
var DefaultResolver Resolver = net.DefaultResolver
