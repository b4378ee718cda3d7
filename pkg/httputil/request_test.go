package httputil

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"quote_request"}`))
		var p payload
		require.NoError(t, ParseJSON(req, &p))
		assert.Equal(t, "quote_request", p.Name)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{`))
		var p payload
		assert.Error(t, ParseJSON(req, &p))
	})
}

func TestParseQueryInt(t *testing.T) {
	t.Run("missing uses default", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/stats", nil)
		val, err := ParseQueryInt(req, "days", 30)
		require.NoError(t, err)
		assert.Equal(t, 30, val)
	})

	t.Run("present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/stats?days=7", nil)
		val, err := ParseQueryInt(req, "days", 30)
		require.NoError(t, err)
		assert.Equal(t, 7, val)
	})

	t.Run("invalid", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/stats?days=week", nil)
		_, err := ParseQueryInt(req, "days", 30)
		assert.Error(t, err)
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			expected:   "203.0.113.7",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"},
			expected:   "203.0.113.7",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			expected:   "198.51.100.4",
		},
		{
			name:       "remote addr strips port",
			remoteAddr: "192.0.2.9:44321",
			expected:   "192.0.2.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, ClientIP(req))
		})
	}
}
