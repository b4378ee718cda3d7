package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Cheegro/milledright-timber-web/pkg/analytics"
	"github.com/Cheegro/milledright-timber-web/pkg/async"
	"github.com/Cheegro/milledright-timber-web/pkg/enrich"
	"github.com/Cheegro/milledright-timber-web/pkg/httputil"
)

// trackTimeout bounds the background enrichment plus store write. IP and
// geolocation lookups each carry a 3s transport timeout; this is the outer
// ceiling.
const trackTimeout = 15 * time.Second

// clientFields are the ambient browser facts shared by both track payloads
type clientFields struct {
	SessionID    string `json:"session_id"`
	ScreenWidth  int    `json:"screen_width"`
	ScreenHeight int    `json:"screen_height"`
	Timezone     string `json:"timezone"`
	IsAdmin      bool   `json:"is_admin"`
}

type trackEventRequest struct {
	clientFields
	Name     string                 `json:"name"`
	Category string                 `json:"category"`
	Path     string                 `json:"path"`
	Params   map[string]interface{} `json:"params"`
}

type trackPageViewRequest struct {
	clientFields
	Path         string `json:"path"`
	Title        string `json:"title"`
	Referrer     string `json:"referrer"`
	ViewDuration *int   `json:"view_duration"`
}

func (f clientFields) clientContext(r *http.Request) enrich.ClientContext {
	return enrich.ClientContext{
		UserAgent:    r.UserAgent(),
		SessionID:    f.SessionID,
		RemoteIP:     httputil.ClientIP(r),
		ScreenWidth:  f.ScreenWidth,
		ScreenHeight: f.ScreenHeight,
		Timezone:     f.Timezone,
	}
}

// trackEvent handles POST /api/v1/track/event. The response is sent before
// enrichment runs; tracking must never block the visitor's browser.
func (s *Server) trackEvent(w http.ResponseWriter, r *http.Request) {
	var req trackEventRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	input := analytics.EventInput{
		Name:     req.Name,
		Category: req.Category,
		Path:     req.Path,
		Params:   req.Params,
		Client:   req.clientContext(r),
		IsAdmin:  req.IsAdmin,
	}
	async.SafeGoNoError(r.Context(), s.logger, trackTimeout, "track event", func(ctx context.Context) {
		s.tracker.TrackEvent(ctx, input)
	})

	httputil.WriteAccepted(w, map[string]string{"status": "accepted"})
}

// trackPageView handles POST /api/v1/track/pageview
func (s *Server) trackPageView(w http.ResponseWriter, r *http.Request) {
	var req trackPageViewRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Path == "" {
		httputil.WriteBadRequest(w, "path is required")
		return
	}

	input := analytics.PageViewInput{
		Path:         req.Path,
		Title:        req.Title,
		Referrer:     req.Referrer,
		ViewDuration: req.ViewDuration,
		Client:       req.clientContext(r),
		IsAdmin:      req.IsAdmin,
	}
	async.SafeGoNoError(r.Context(), s.logger, trackTimeout, "track page view", func(ctx context.Context) {
		s.tracker.TrackPageView(ctx, input)
	})

	httputil.WriteAccepted(w, map[string]string{"status": "accepted"})
}
