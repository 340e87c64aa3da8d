// Package sessionrequest parses, normalizes, and validates the URL a
// caller wants attested, enforcing the SSRF guard in spec.md §4.1 before
// any DNS resolution result is handed to the MPC-TLS session driver.
package sessionrequest

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tls-oracle/prover/internal/config"
	"github.com/tls-oracle/prover/internal/oracleerr"
)

const maxURLLength = 2048

// deniedHeaders mirrors spec.md §4.1's deny-list; Proxy-* is matched by
// prefix.
var deniedHeaders = map[string]struct{}{
	"host":          {},
	"authorization": {},
	"cookie":        {},
}

// Method is the set of HTTP methods this service will relay to an origin.
type Method string

const (
	MethodGET  Method = "GET"
	MethodPOST Method = "POST"
)

// Request is the validated, immutable request for one attestation.
type Request struct {
	RawURL     string
	URL        *url.URL
	Method     Method
	Headers    map[string]string
	Body       []byte
	ServerName string // lowercased host, no port
	Port       int
}

// Validate parses and validates rawURL, method, and headers per spec.md
// §4.1. It does not perform DNS resolution; callers must pass the result
// to ResolveAndFilter before connecting.
func Validate(cfg *config.Config, correlationID, rawURL string, method string, headers map[string]string, body []byte) (*Request, *oracleerr.Error) {
	if len(rawURL) > maxURLLength {
		return nil, oracleerr.New(oracleerr.InvalidRequest, correlationID, "url exceeds maximum length")
	}

	m := Method(strings.ToUpper(method))
	if method == "" {
		m = MethodGET
	}
	if m != MethodGET && m != MethodPOST {
		return nil, oracleerr.New(oracleerr.InvalidRequest, correlationID, "method must be GET or POST")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.InvalidRequest, correlationID, "malformed url", err)
	}
	if u.Scheme != "https" {
		return nil, oracleerr.New(oracleerr.InvalidRequest, correlationID, "scheme must be https")
	}
	if u.Hostname() == "" {
		return nil, oracleerr.New(oracleerr.InvalidRequest, correlationID, "missing host")
	}

	port := 443
	if p := u.Port(); p != "" {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			return nil, oracleerr.New(oracleerr.InvalidRequest, correlationID, "invalid port")
		}
		if n != 443 && !portAllowed(cfg, n) {
			return nil, oracleerr.New(oracleerr.InvalidRequest, correlationID, "port not permitted")
		}
		port = n
	}

	cleanHeaders := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		if _, denied := deniedHeaders[lk]; denied {
			continue
		}
		if strings.HasPrefix(lk, "proxy-") {
			continue
		}
		cleanHeaders[k] = v
	}

	return &Request{
		RawURL:     rawURL,
		URL:        u,
		Method:     m,
		Headers:    cleanHeaders,
		Body:       body,
		ServerName: strings.ToLower(u.Hostname()),
		Port:       port,
	}, nil
}

func portAllowed(cfg *config.Config, port int) bool {
	for _, p := range cfg.AllowedPorts {
		if p == port {
			return true
		}
	}
	return false
}
