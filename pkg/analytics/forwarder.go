package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Cheegro/milledright-timber-web/pkg/observability"
)

const (
	ga4Endpoint   = "https://www.google-analytics.com/mp/collect"
	pixelEndpoint = "https://www.facebook.com/tr"

	forwardTimeout = 3 * time.Second
)

// ForwarderConfig carries third-party tag credentials. Leave a field empty
// to disable that destination.
type ForwarderConfig struct {
	GA4MeasurementID string
	GA4APISecret     string
	PixelID          string
}

// Enabled reports whether at least one destination is configured.
func (c ForwarderConfig) Enabled() bool {
	return (c.GA4MeasurementID != "" && c.GA4APISecret != "") || c.PixelID != ""
}

// Forwarder relays tracked events to third-party tags (GA4 measurement
// protocol and a tracking pixel) on a best-effort basis. A nil Forwarder
// is valid and forwards nothing.
type Forwarder struct {
	cfg     ForwarderConfig
	client  *http.Client
	logger  *observability.Logger
	metrics *observability.Metrics

	// overridable in tests
	ga4URL   string
	pixelURL string
}

// NewForwarder returns a configured forwarder, or nil when no destination
// has credentials.
func NewForwarder(cfg ForwarderConfig, logger *observability.Logger, metrics *observability.Metrics) *Forwarder {
	if !cfg.Enabled() {
		return nil
	}
	return &Forwarder{
		cfg:      cfg,
		client:   &http.Client{Timeout: forwardTimeout},
		logger:   logger,
		metrics:  metrics,
		ga4URL:   ga4Endpoint,
		pixelURL: pixelEndpoint,
	}
}

type ga4Payload struct {
	ClientID string     `json:"client_id"`
	Events   []ga4Event `json:"events"`
}

type ga4Event struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ForwardEvent relays a tracked event to every configured destination.
// Failures are logged and counted, never returned.
func (f *Forwarder) ForwardEvent(ctx context.Context, rec *EventRecord) {
	if f == nil {
		return
	}
	if f.cfg.GA4MeasurementID != "" && f.cfg.GA4APISecret != "" {
		f.forwardGA4(ctx, rec)
	}
	if f.cfg.PixelID != "" {
		f.forwardPixel(ctx, rec)
	}
}

func (f *Forwarder) forwardGA4(ctx context.Context, rec *EventRecord) {
	clientID := rec.SessionID
	if clientID == "" {
		clientID = rec.ID
	}
	params := map[string]interface{}{}
	for k, v := range rec.Params {
		params[k] = v
	}
	if rec.Category != "" {
		params["event_category"] = rec.Category
	}
	if rec.Path != "" {
		params["page_path"] = rec.Path
	}
	body, err := json.Marshal(ga4Payload{
		ClientID: clientID,
		Events:   []ga4Event{{Name: rec.Name, Params: params}},
	})
	if err != nil {
		f.report("ga4", "encode_failed", err)
		return
	}

	u := fmt.Sprintf("%s?measurement_id=%s&api_secret=%s",
		f.ga4URL, url.QueryEscape(f.cfg.GA4MeasurementID), url.QueryEscape(f.cfg.GA4APISecret))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		f.report("ga4", "request_failed", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.report("ga4", "send_failed", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		f.report("ga4", "send_failed", fmt.Errorf("unexpected status %d", resp.StatusCode))
		return
	}
	f.succeed("ga4")
}

func (f *Forwarder) forwardPixel(ctx context.Context, rec *EventRecord) {
	q := url.Values{}
	q.Set("id", f.cfg.PixelID)
	q.Set("ev", rec.Name)
	q.Set("noscript", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.pixelURL+"?"+q.Encode(), nil)
	if err != nil {
		f.report("pixel", "request_failed", err)
		return
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.report("pixel", "send_failed", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		f.report("pixel", "send_failed", fmt.Errorf("unexpected status %d", resp.StatusCode))
		return
	}
	f.succeed("pixel")
}

func (f *Forwarder) report(destination, outcome string, err error) {
	if f.metrics != nil {
		f.metrics.TagForwardsTotal.WithLabelValues(destination, outcome).Inc()
	}
	f.logger.WithError(err).WithField("destination", destination).Debug("Tag forward failed")
}

func (f *Forwarder) succeed(destination string) {
	if f.metrics != nil {
		f.metrics.TagForwardsTotal.WithLabelValues(destination, "ok").Inc()
	}
}
