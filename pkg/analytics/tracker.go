package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Cheegro/milledright-timber-web/pkg/enrich"
	"github.com/Cheegro/milledright-timber-web/pkg/observability"
)

// Event categories used by the convenience wrappers.
const (
	CategoryConversion  = "conversion"
	CategoryInteraction = "interaction"
	CategoryError       = "error"
)

// pageViewEventName is the synthetic event emitted alongside every page view
// so that page traffic shows up in the event stream as well.
const pageViewEventName = "page_view"

// EventInput describes a named interaction to be tracked.
type EventInput struct {
	Name     string
	Category string
	Path     string
	Params   map[string]interface{}
	Client   enrich.ClientContext
	IsAdmin  bool
}

// PageViewInput describes a page impression to be tracked.
type PageViewInput struct {
	Path         string
	Title        string
	Referrer     string
	ViewDuration *int
	Client       enrich.ClientContext
	IsAdmin      bool
}

// Tracker is the entry point of the telemetry pipeline. It applies the
// suppression policy, enriches the call, persists the resulting records, and
// forwards to third-party tags. Every method is best-effort and returns
// nothing to the caller.
type Tracker struct {
	store     RecordWriter
	enricher  *enrich.Enricher
	policy    *PolicyStore
	forwarder *Forwarder
	logger    *observability.Logger
	metrics   *observability.Metrics

	now func() time.Time
}

// NewTracker wires the pipeline together. forwarder may be nil; metrics may
// be nil in tests.
func NewTracker(store RecordWriter, enricher *enrich.Enricher, policy *PolicyStore, forwarder *Forwarder, logger *observability.Logger, metrics *observability.Metrics) *Tracker {
	return &Tracker{
		store:     store,
		enricher:  enricher,
		policy:    policy,
		forwarder: forwarder,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// TrackEvent records a named interaction. Suppressed, failed, or partially
// enriched calls never surface an error.
func (t *Tracker) TrackEvent(ctx context.Context, in EventInput) {
	if in.Name == "" {
		return
	}
	if t.suppressed(in.Path, in.IsAdmin) {
		return
	}

	rec := &EventRecord{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Category:  in.Category,
		Path:      in.Path,
		SessionID: in.Client.SessionID,
		Params:    in.Params,
		CreatedAt: t.now().UTC(),
	}

	enrichment := t.enrichSafe(ctx, in.Client)
	applyEnrichment(&rec.EnrichmentFields, enrichment, in.Client)

	t.writeEvent(ctx, rec)
	t.forwarder.ForwardEvent(ctx, rec)
}

// TrackPageView records a page impression plus a synthetic page_view event.
// Both records share a single enrichment pass so the session page count only
// advances once per impression.
func (t *Tracker) TrackPageView(ctx context.Context, in PageViewInput) {
	if in.Path == "" {
		return
	}
	if t.suppressed(in.Path, in.IsAdmin) {
		return
	}

	enrichment := t.enrichSafe(ctx, in.Client)

	pv := &PageViewRecord{
		ID:           uuid.New().String(),
		Path:         in.Path,
		Title:        in.Title,
		Referrer:     in.Referrer,
		UserAgent:    in.Client.UserAgent,
		SessionID:    in.Client.SessionID,
		ViewDuration: in.ViewDuration,
		CreatedAt:    t.now().UTC(),
	}
	applyEnrichment(&pv.EnrichmentFields, enrichment, in.Client)
	if enrichment.Session.ID != "" {
		pv.SessionDuration = int(enrichment.Session.Duration.Seconds())
		pv.PageCount = enrichment.Session.PageCount
		pv.IsBounce = enrichment.Session.IsBounce
	} else {
		// No session id from the client; a lone impression counts as a bounce.
		pv.PageCount = 1
		pv.IsBounce = true
	}

	ev := &EventRecord{
		ID:        uuid.New().String(),
		Name:      pageViewEventName,
		Path:      in.Path,
		SessionID: in.Client.SessionID,
		Params: map[string]interface{}{
			"title": in.Title,
		},
		CreatedAt: pv.CreatedAt,
	}
	applyEnrichment(&ev.EnrichmentFields, enrichment, in.Client)

	// The synthetic event goes out ahead of the dedicated page-view record.
	t.forwarder.ForwardEvent(ctx, ev)
	t.writeEvent(ctx, ev)
	t.writePageView(ctx, pv)
}

// TrackConversion records a high-value action (quote request, phone call,
// direction lookup).
func (t *Tracker) TrackConversion(ctx context.Context, name, path string, params map[string]interface{}, client enrich.ClientContext) {
	t.TrackEvent(ctx, EventInput{
		Name:     name,
		Category: CategoryConversion,
		Path:     path,
		Params:   params,
		Client:   client,
	})
}

// TrackInteraction records an ordinary UI interaction.
func (t *Tracker) TrackInteraction(ctx context.Context, name, path string, params map[string]interface{}, client enrich.ClientContext) {
	t.TrackEvent(ctx, EventInput{
		Name:     name,
		Category: CategoryInteraction,
		Path:     path,
		Params:   params,
		Client:   client,
	})
}

// TrackError records a client-side error report.
func (t *Tracker) TrackError(ctx context.Context, message, path string, client enrich.ClientContext) {
	t.TrackEvent(ctx, EventInput{
		Name:     "client_error",
		Category: CategoryError,
		Path:     path,
		Params:   map[string]interface{}{"message": message},
		Client:   client,
	})
}

func (t *Tracker) suppressed(path string, isAdmin bool) bool {
	drop, reason := t.policy.Current().Suppresses(path, isAdmin)
	if drop && t.metrics != nil {
		t.metrics.TrackingSuppressedTotal.WithLabelValues(reason).Inc()
	}
	return drop
}

// enrichSafe runs enrichment with a panic guard. A panicking lookup yields a
// zero enrichment and the base record is written as-is.
func (t *Tracker) enrichSafe(ctx context.Context, client enrich.ClientContext) (enrichment enrich.Enrichment) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.WithError(fmt.Errorf("panic: %v", r)).Error("Enrichment panicked, writing unenriched record")
			if t.metrics != nil {
				t.metrics.EnrichmentFailuresTotal.WithLabelValues("panic").Inc()
			}
			enrichment = enrich.Enrichment{}
		}
	}()
	return t.enricher.Enrich(ctx, client)
}

func (t *Tracker) writePageView(ctx context.Context, rec *PageViewRecord) {
	if err := t.store.InsertPageView(ctx, rec); err != nil {
		t.logger.WithError(err).WithField("path", rec.Path).Error("Failed to store page view")
		if t.metrics != nil {
			t.metrics.StoreWriteFailuresTotal.WithLabelValues("page_view").Inc()
		}
		return
	}
	if t.metrics != nil {
		t.metrics.EventsTrackedTotal.WithLabelValues("page_view").Inc()
	}
}

func (t *Tracker) writeEvent(ctx context.Context, rec *EventRecord) {
	if err := t.store.InsertEvent(ctx, rec); err != nil {
		t.logger.WithError(err).WithField("event", rec.Name).Error("Failed to store event")
		if t.metrics != nil {
			t.metrics.StoreWriteFailuresTotal.WithLabelValues("event").Inc()
		}
		return
	}
	if t.metrics != nil {
		t.metrics.EventsTrackedTotal.WithLabelValues("event").Inc()
	}
}

func applyEnrichment(f *EnrichmentFields, en enrich.Enrichment, client enrich.ClientContext) {
	f.IPAddress = en.IPAddress
	f.Country = en.Location.Country
	f.Region = en.Location.Region
	f.City = en.Location.City
	f.Latitude = en.Location.Latitude
	f.Longitude = en.Location.Longitude
	f.ScreenResolution = en.Device.ScreenResolution
	f.Timezone = en.Device.Timezone
	f.DistanceMiles = en.DistanceMiles

	// Device facts are only meaningful when a user agent was submitted.
	// Without one the classification stays absent rather than defaulting
	// to a desktop guess.
	if client.UserAgent != "" {
		f.DeviceType = en.Device.Type
		f.Browser = en.Device.Browser
		f.OperatingSystem = en.Device.OperatingSystem
		isMobile := en.Device.IsMobile
		f.IsMobile = &isMobile
	}
}
