package enrich

import (
	"context"
	"time"

	"github.com/Cheegro/milledright-timber-web/pkg/observability"
)

// ClientContext carries the ambient browser facts submitted with a tracking
// call. RemoteIP is the address the HTTP layer saw; when it is usable the
// external lookup chain is skipped.
type ClientContext struct {
	UserAgent    string
	SessionID    string
	RemoteIP     string
	ScreenWidth  int
	ScreenHeight int
	Timezone     string
}

// Enrichment is the set of derived facts merged onto a base record before it
// is written. Absent fields mean the corresponding step failed; enrichment
// never aborts the write.
type Enrichment struct {
	IPAddress     string
	Location      Location
	Device        Device
	Session       Session
	DistanceMiles *float64
	EnrichedAt    time.Time
}

// Enricher composes IP resolution, geolocation, device classification, and
// session tracking into a single augmentation step.
type Enricher struct {
	ips      *IPResolver
	geo      *Geolocator
	sessions *SessionTracker
	logger   *observability.Logger

	// Reference point for distance computation, typically the business's
	// own coordinates. Zero values disable the distance field.
	baseLat float64
	baseLon float64
}

// NewEnricher creates an enricher from its components. baseLat/baseLon are
// the business coordinates used for the distance-from-business field.
func NewEnricher(ips *IPResolver, geo *Geolocator, sessions *SessionTracker, logger *observability.Logger, baseLat, baseLon float64) *Enricher {
	return &Enricher{
		ips:      ips,
		geo:      geo,
		sessions: sessions,
		logger:   logger,
		baseLat:  baseLat,
		baseLon:  baseLon,
	}
}

// Enrich derives facts for one tracking call. IP resolution runs first
// because geolocation depends on it; device classification and session
// tracking are synchronous and independent.
func (e *Enricher) Enrich(ctx context.Context, client ClientContext) Enrichment {
	enrichment := Enrichment{
		EnrichedAt: time.Now().UTC(),
	}

	ip := client.RemoteIP
	if !AcceptableIP(ip) {
		// No usable address from the transport layer; fall back to the
		// external lookup chain.
		resolved, ok := e.ips.Resolve(ctx)
		if ok {
			ip = resolved
		} else {
			ip = ""
		}
	}
	enrichment.IPAddress = ip

	if ip != "" {
		enrichment.Location = e.geo.Lookup(ctx, ip)
	}

	enrichment.Device = Classify(client.UserAgent, client.ScreenWidth, client.ScreenHeight, client.Timezone)

	if client.SessionID != "" {
		enrichment.Session = e.sessions.Touch(client.SessionID)
	}

	if loc := enrichment.Location; loc.Latitude != nil && loc.Longitude != nil &&
		(e.baseLat != 0 || e.baseLon != 0) {
		d := Distance(*loc.Latitude, *loc.Longitude, e.baseLat, e.baseLon)
		enrichment.DistanceMiles = &d
	}

	return enrichment
}
