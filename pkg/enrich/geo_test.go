package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeolocator_Lookup(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"status":"success","country":"Canada","regionName":"Ontario","city":"Huntsville","lat":45.33,"lon":-79.21}`)
	}))
	defer srv.Close()

	g := NewGeolocator(testLogger(), srv.URL, nil)
	loc := g.Lookup(context.Background(), "203.0.113.10")

	assert.Equal(t, "Canada", loc.Country)
	assert.Equal(t, "Ontario", loc.Region)
	assert.Equal(t, "Huntsville", loc.City)
	require.NotNil(t, loc.Latitude)
	require.NotNil(t, loc.Longitude)
	assert.InDelta(t, 45.33, *loc.Latitude, 0.001)
	assert.InDelta(t, -79.21, *loc.Longitude, 0.001)
}

func TestGeolocator_CachesPerIP(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"status":"success","country":"Canada","city":"Huntsville","lat":45.33,"lon":-79.21}`)
	}))
	defer srv.Close()

	g := NewGeolocator(testLogger(), srv.URL, nil)

	first := g.Lookup(context.Background(), "203.0.113.10")
	second := g.Lookup(context.Background(), "203.0.113.10")

	assert.Equal(t, int64(1), calls.Load(), "second lookup must be served from cache")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, g.CacheLen())
}

func TestGeolocator_ProviderFailure(t *testing.T) {
	t.Run("provider error flag", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"fail","message":"private range"}`)
		}))
		defer srv.Close()

		g := NewGeolocator(testLogger(), srv.URL, nil)
		loc := g.Lookup(context.Background(), "10.0.0.1")
		assert.True(t, loc.Empty())
	})

	t.Run("non-2xx response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		g := NewGeolocator(testLogger(), srv.URL, nil)
		loc := g.Lookup(context.Background(), "203.0.113.10")
		assert.True(t, loc.Empty())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		g := NewGeolocator(testLogger(), srv.URL, nil)
		g.Lookup(context.Background(), "203.0.113.10")
		g.Lookup(context.Background(), "203.0.113.10")
		assert.Equal(t, int64(2), calls.Load())
	})
}

func TestDistance(t *testing.T) {
	t.Run("identical points", func(t *testing.T) {
		assert.Zero(t, Distance(45.33, -79.21, 45.33, -79.21))
	})

	t.Run("symmetric", func(t *testing.T) {
		a := Distance(45.33, -79.21, 43.65, -79.38)
		b := Distance(43.65, -79.38, 45.33, -79.21)
		assert.InDelta(t, a, b, 1e-9)
	})

	t.Run("known distance", func(t *testing.T) {
		// Toronto to Huntsville is roughly 117 miles as the crow flies
		d := Distance(43.65, -79.38, 45.33, -79.21)
		assert.InDelta(t, 117, d, 5)
	})
}
