package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupeKeyStableForIdenticalRequests(t *testing.T) {
	a := translateRequest{Bundle: []byte(`{"contracts":[]}`), Roots: []string{"A"}, MapDepth: 4}
	b := translateRequest{Bundle: []byte(`{"contracts":[]}`), Roots: []string{"A"}, MapDepth: 4}
	require.Equal(t, dedupeKey(a), dedupeKey(b))
}

func TestDedupeKeyDiffersOnConfig(t *testing.T) {
	a := translateRequest{Bundle: []byte(`{"contracts":[]}`), Roots: []string{"A"}, MapDepth: 4}
	b := translateRequest{Bundle: []byte(`{"contracts":[]}`), Roots: []string{"A"}, MapDepth: 8}
	require.NotEqual(t, dedupeKey(a), dedupeKey(b))
}

func TestExtractClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/translate", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r.RemoteAddr = "10.0.0.2:4000"

	ip, err := extractClientIP(r)
	require.NoError(t, err)
	require.Equal(t, "203.0.113.5", ip)
}

func TestExtractClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/translate", nil)
	r.RemoteAddr = "10.0.0.2:4000"

	ip, err := extractClientIP(r)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.2", ip)
}
