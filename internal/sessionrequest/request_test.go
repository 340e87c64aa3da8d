package sessionrequest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tls-oracle/prover/internal/config"
	"github.com/tls-oracle/prover/internal/oracleerr"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowedPorts = []int{8443}
	return cfg
}

func TestValidateAcceptsPlainHTTPSGet(t *testing.T) {
	req, oerr := Validate(testConfig(), "cid", "https://example.com/path", "GET", nil, nil)
	require.Nil(t, oerr)
	assert.Equal(t, MethodGET, req.Method)
	assert.Equal(t, "example.com", req.ServerName)
	assert.Equal(t, 443, req.Port)
}

func TestValidateDefaultsToGetWhenMethodEmpty(t *testing.T) {
	req, oerr := Validate(testConfig(), "cid", "https://example.com/", "", nil, nil)
	require.Nil(t, oerr)
	assert.Equal(t, MethodGET, req.Method)
}

func TestValidateRejectsNonHTTPSScheme(t *testing.T) {
	_, oerr := Validate(testConfig(), "cid", "http://example.com/", "GET", nil, nil)
	require.NotNil(t, oerr)
	assert.Equal(t, oracleerr.InvalidRequest, oerr.Kind)
}

func TestValidateRejectsBadMethod(t *testing.T) {
	_, oerr := Validate(testConfig(), "cid", "https://example.com/", "DELETE", nil, nil)
	require.NotNil(t, oerr)
	assert.Equal(t, oracleerr.InvalidRequest, oerr.Kind)
}

func TestValidateRejectsOverlongURL(t *testing.T) {
	longPath := make([]byte, maxURLLength+1)
	for i := range longPath {
		longPath[i] = 'a'
	}
	_, oerr := Validate(testConfig(), "cid", "https://example.com/"+string(longPath), "GET", nil, nil)
	require.NotNil(t, oerr)
	assert.Equal(t, oracleerr.InvalidRequest, oerr.Kind)
}

func TestValidateRejectsDisallowedPort(t *testing.T) {
	_, oerr := Validate(testConfig(), "cid", "https://example.com:9000/", "GET", nil, nil)
	require.NotNil(t, oerr)
	assert.Equal(t, oracleerr.InvalidRequest, oerr.Kind)
}

func TestValidateAcceptsExplicitlyAllowedPort(t *testing.T) {
	req, oerr := Validate(testConfig(), "cid", "https://example.com:8443/", "GET", nil, nil)
	require.Nil(t, oerr)
	assert.Equal(t, 8443, req.Port)
}

func TestValidateStripsDeniedHeaders(t *testing.T) {
	headers := map[string]string{
		"Host":            "evil.example.com",
		"Authorization":   "Bearer secret",
		"Cookie":          "session=1",
		"Proxy-Whatever":  "1",
		"X-Custom-Header": "keep-me",
	}
	req, oerr := Validate(testConfig(), "cid", "https://example.com/", "GET", headers, nil)
	require.Nil(t, oerr)
	assert.Len(t, req.Headers, 1)
	_, ok := req.Headers["X-Custom-Header"]
	assert.True(t, ok)
}

func TestValidateRejectsMissingHost(t *testing.T) {
	_, oerr := Validate(testConfig(), "cid", "https:///path", "GET", nil, nil)
	require.NotNil(t, oerr)
	assert.Equal(t, oracleerr.InvalidRequest, oerr.Kind)
}
