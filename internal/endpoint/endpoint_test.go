package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtr002/bansu-harness/internal/outcome"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		raw  string
		want Endpoint
	}{
		{"https://example.org/bansu", Endpoint{Host: "example.org", Port: 443, Prefix: "/bansu", Scheme: "https"}},
		{"http://localhost:8080", Endpoint{Host: "localhost", Port: 8080, Prefix: "", Scheme: "http"}},
		{"", Endpoint{Host: "localhost", Port: 8080, Prefix: "", Scheme: "http"}},
		{"http://example.org/", Endpoint{Host: "example.org", Port: 80, Prefix: "", Scheme: "http"}},
		{"https://example.org:8443/api/bansu/", Endpoint{Host: "example.org", Port: 8443, Prefix: "/api/bansu", Scheme: "https"}},
		{"HTTP://[::1]:9000", Endpoint{Host: "::1", Port: 9000, Prefix: "", Scheme: "http"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Resolve(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	for _, raw := range []string{
		"localhost:8080",
		"ftp://example.org",
		"http://",
		"http://example.org:99999",
		"http://exa mple.org",
		"://missing-scheme",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Resolve(raw)
			require.Error(t, err)

			oe, ok := outcome.As(err)
			require.True(t, ok)
			assert.Equal(t, outcome.KindValidation, oe.Kind)
			assert.Equal(t, outcome.StageConfig, oe.Stage)
		})
	}
}

func TestURLComposition(t *testing.T) {
	ep, err := Resolve("https://example.org/bansu")
	require.NoError(t, err)

	assert.Equal(t, "https://example.org:443/bansu/run_acedrg", ep.HTTPURL("/run_acedrg"))
	assert.Equal(t, "wss://example.org:443/bansu/ws/abc", ep.WebSocketURL("/ws/abc"))

	ep, err = Resolve("http://localhost:8080/")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/get_cif/abc", ep.HTTPURL("/get_cif/abc"))
	assert.Equal(t, "ws://localhost:8080/ws/abc", ep.WebSocketURL("/ws/abc"))
	assert.False(t, ep.Secure())
}

func TestResolveIPv6URL(t *testing.T) {
	ep, err := Resolve("http://[::1]:9000")
	require.NoError(t, err)
	assert.Equal(t, "http://[::1]:9000/run_acedrg", ep.HTTPURL("/run_acedrg"))
}
