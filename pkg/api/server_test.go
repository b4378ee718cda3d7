package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheegro/milledright-timber-web/pkg/analytics"
	"github.com/Cheegro/milledright-timber-web/pkg/enrich"
	"github.com/Cheegro/milledright-timber-web/pkg/middleware"
	"github.com/Cheegro/milledright-timber-web/pkg/observability"
	"github.com/Cheegro/milledright-timber-web/pkg/stats"
)

// memStore backs both the write path and the statistics reads in tests
type memStore struct {
	mu        sync.Mutex
	pageViews []*analytics.PageViewRecord
	events    []*analytics.EventRecord
}

func (s *memStore) InsertPageView(_ context.Context, rec *analytics.PageViewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageViews = append(s.pageViews, rec)
	return nil
}

func (s *memStore) InsertEvent(_ context.Context, rec *analytics.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, rec)
	return nil
}

func (s *memStore) CountPageViews(_ context.Context, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, rec := range s.pageViews {
		if !rec.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) QueryPageViews(_ context.Context, since time.Time) ([]*analytics.PageViewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*analytics.PageViewRecord
	for _, rec := range s.pageViews {
		if !rec.CreatedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) QueryEvents(_ context.Context, since time.Time) ([]*analytics.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*analytics.EventRecord
	for _, rec := range s.events {
		if !rec.CreatedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) RecentPageViews(_ context.Context, limit int) ([]*analytics.PageViewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*analytics.PageViewRecord, 0, limit)
	for i := len(s.pageViews) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.pageViews[i])
	}
	return out, nil
}

func (s *memStore) RecentEvents(_ context.Context, limit int) ([]*analytics.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*analytics.EventRecord, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *memStore) pageViewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pageViews)
}

func (s *memStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newTestServer(t *testing.T, opts Options) (*Server, *memStore) {
	t.Helper()

	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","country":"Canada","regionName":"Ontario","city":"Huntsville","lat":45.327,"lon":-79.217}`)
	}))
	t.Cleanup(geoSrv.Close)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	store := &memStore{}
	enricher := enrich.NewEnricher(
		enrich.NewIPResolver(logger, nil),
		enrich.NewGeolocator(logger, geoSrv.URL, nil),
		enrich.NewSessionTracker(nil),
		logger,
		45.341, -79.218,
	)
	tracker := analytics.NewTracker(store, enricher, analytics.NewPolicyStore("", logger), nil, logger, nil)
	statsService := stats.NewService(store, nil, logger, nil, time.UTC)

	return NewServer(tracker, statsService, logger, opts), store
}

func postJSON(t *testing.T, server *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0.0.0 Safari/537.36")
	req.RemoteAddr = "203.0.113.5:43210"
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestServer_TrackPageView(t *testing.T) {
	server, store := newTestServer(t, Options{})

	rec := postJSON(t, server, "/api/v1/track/pageview",
		`{"path":"/products/decking","title":"Decking","session_id":"sess-1","screen_width":1920,"screen_height":1080}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// The write happens in the background after the 202.
	require.Eventually(t, func() bool {
		return store.pageViewCount() == 1 && store.eventCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, "/products/decking", store.pageViews[0].Path)
	assert.Equal(t, "sess-1", store.pageViews[0].SessionID)
	assert.Equal(t, "Canada", store.pageViews[0].Country)
	assert.Equal(t, "page_view", store.events[0].Name)
}

func TestServer_TrackEvent(t *testing.T) {
	server, store := newTestServer(t, Options{})

	rec := postJSON(t, server, "/api/v1/track/event",
		`{"name":"quote_request","category":"conversion","path":"/contact","params":{"product":"cedar decking"},"session_id":"sess-1"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return store.eventCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, "quote_request", store.events[0].Name)
	assert.Equal(t, "conversion", store.events[0].Category)
}

func TestServer_TrackEventValidation(t *testing.T) {
	server, _ := newTestServer(t, Options{})

	rec := postJSON(t, server, "/api/v1/track/event", `{"category":"conversion"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, server, "/api/v1/track/event", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, server, "/api/v1/track/pageview", `{"title":"no path"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetStatistics(t *testing.T) {
	server, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats?days=7", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result stats.CompositeStatistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 7, result.WindowDays)
	assert.Zero(t, result.TotalPageViews)
	assert.Len(t, result.HourlyStats, 24)
	assert.NotNil(t, result.TopPages)
}

func TestServer_GetStatisticsValidation(t *testing.T) {
	server, _ := newTestServer(t, Options{})

	for _, query := range []string{"days=9999", "days=-1", "days=abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats?"+query, nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestServer_GetRecentActivity(t *testing.T) {
	server, store := newTestServer(t, Options{})
	require.NoError(t, store.InsertEvent(context.Background(), &analytics.EventRecord{
		ID:        "evt-1",
		Name:      "quote_request",
		CreatedAt: time.Now().UTC(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/recent?limit=5", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var feed []stats.ActivityItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, "quote_request", feed[0].Label)
}

func TestServer_TrackEndpointsAreRateLimited(t *testing.T) {
	server, _ := newTestServer(t, Options{
		RateLimit: &middleware.RateLimitConfig{
			RequestsPerWindow: 1,
			WindowDuration:    time.Minute,
		},
	})

	rec := postJSON(t, server, "/api/v1/track/event", `{"name":"click"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = postJSON(t, server, "/api/v1/track/event", `{"name":"click"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Stats endpoints live outside the rate-limited subrouter.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.RemoteAddr = "203.0.113.5:43210"
	statsRec := httptest.NewRecorder()
	server.ServeHTTP(statsRec, req)
	assert.Equal(t, http.StatusOK, statsRec.Code)
}

func TestServer_HealthProbes(t *testing.T) {
	server, _ := newTestServer(t, Options{
		Health: observability.NewHealthChecker(nil, nil),
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_UnknownRoute(t *testing.T) {
	server, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
