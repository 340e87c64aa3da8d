package sessionrequest

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tls-oracle/prover/internal/config"
	"github.com/tls-oracle/prover/internal/oracleerr"
)

// fakeResolver lets tests control what a hostname resolves to without
// touching real DNS.
type fakeResolver struct {
	addrs []net.IPAddr
	err   error
}

func (f fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return f.addrs, f.err
}

func mustRequest(t *testing.T, rawURL string) *Request {
	t.Helper()
	req, oerr := Validate(config.DefaultConfig(), "cid", rawURL, "GET", nil, nil)
	require.Nil(t, oerr)
	return req
}

// reservedLiterals enumerates one representative IP literal per RFC-reserved
// range the SSRF guard must close, independent of how the URL is shaped.
func reservedLiterals() []string {
	return []string{
		"127.0.0.1",     // loopback
		"10.0.0.5",      // private
		"169.254.1.1",   // link-local
		"0.0.0.0",       // unspecified
		"224.0.0.1",     // multicast
		"100.64.0.1",    // CGNAT
		"192.0.2.1",     // TEST-NET-1
		"198.51.100.1",  // TEST-NET-2
		"203.0.113.1",   // TEST-NET-3
		"198.18.0.1",    // benchmarking
		"255.255.255.255", // broadcast
		"::1",           // IPv6 loopback
		"fe80::1",       // IPv6 link-local
		"2001:db8::1",   // IPv6 documentation
	}
}

func TestResolveAndFilterRejectsEveryReservedIPLiteral(t *testing.T) {
	cfg := config.DefaultConfig()
	for _, ip := range reservedLiterals() {
		req := mustRequest(t, "https://"+bracketIfV6(ip)+"/")
		_, oerr := ResolveAndFilter(context.Background(), cfg, fakeResolver{}, "cid", req)
		require.NotNil(t, oerr, "ip literal %s should have been rejected", ip)
		assert.Equal(t, oracleerr.SsrfBlocked, oerr.Kind, "ip literal %s", ip)
	}
}

func bracketIfV6(ip string) string {
	if net.ParseIP(ip).To4() == nil {
		return "[" + ip + "]"
	}
	return ip
}

func TestResolveAndFilterAllowsPublicIPLiteral(t *testing.T) {
	cfg := config.DefaultConfig()
	req := mustRequest(t, "https://93.184.216.34/")
	endpoints, oerr := ResolveAndFilter(context.Background(), cfg, fakeResolver{}, "cid", req)
	require.Nil(t, oerr)
	require.Len(t, endpoints, 1)
	assert.Equal(t, "93.184.216.34", endpoints[0].IP.String())
}

func TestResolveAndFilterRejectsWhenAnyResolvedAddressIsReserved(t *testing.T) {
	cfg := config.DefaultConfig()
	req := mustRequest(t, "https://example.com/")
	resolver := fakeResolver{addrs: []net.IPAddr{
		{IP: net.ParseIP("93.184.216.34")},
		{IP: net.ParseIP("127.0.0.1")},
	}}
	_, oerr := ResolveAndFilter(context.Background(), cfg, resolver, "cid", req)
	require.NotNil(t, oerr)
	assert.Equal(t, oracleerr.SsrfBlocked, oerr.Kind)
}

func TestResolveAndFilterAllowsAllPublicResolvedAddresses(t *testing.T) {
	cfg := config.DefaultConfig()
	req := mustRequest(t, "https://example.com/")
	resolver := fakeResolver{addrs: []net.IPAddr{
		{IP: net.ParseIP("93.184.216.34")},
		{IP: net.ParseIP("93.184.216.35")},
	}}
	endpoints, oerr := ResolveAndFilter(context.Background(), cfg, resolver, "cid", req)
	require.Nil(t, oerr)
	assert.Len(t, endpoints, 2)
}

func TestResolveAndFilterHonoursDenyList(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HostDenyList = []string{"example.com"}
	req := mustRequest(t, "https://example.com/")
	_, oerr := ResolveAndFilter(context.Background(), cfg, fakeResolver{}, "cid", req)
	require.NotNil(t, oerr)
	assert.Equal(t, oracleerr.SsrfBlocked, oerr.Kind)
}

func TestResolveAndFilterHonoursAllowList(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HostAllowList = []string{"allowed.example.com"}
	req := mustRequest(t, "https://example.com/")
	_, oerr := ResolveAndFilter(context.Background(), cfg, fakeResolver{}, "cid", req)
	require.NotNil(t, oerr)
	assert.Equal(t, oracleerr.SsrfBlocked, oerr.Kind)
}

func TestResolveAndFilterPropagatesDNSFailureAsOriginUnreachable(t *testing.T) {
	cfg := config.DefaultConfig()
	req := mustRequest(t, "https://example.com/")
	resolver := fakeResolver{err: assertDNSError{}}
	_, oerr := ResolveAndFilter(context.Background(), cfg, resolver, "cid", req)
	require.NotNil(t, oerr)
	assert.Equal(t, oracleerr.OriginUnreachable, oerr.Kind)
}

type assertDNSError struct{}

func (assertDNSError) Error() string { return "simulated dns failure" }
