package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Cheegro/milledright-timber-web/pkg/observability"
)

// earthRadiusMiles is the mean Earth radius used by the haversine formula
const earthRadiusMiles = 3959.0

// defaultGeoCacheSize bounds the per-process location cache. Distinct client
// IPs for a single-site deployment sit well under this.
const defaultGeoCacheSize = 65536

// Location is a coarse resolved location. All fields are optional; an empty
// Location means the lookup failed or the provider had no data.
type Location struct {
	Country   string   `json:"country,omitempty"`
	Region    string   `json:"region,omitempty"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Empty reports whether no field of the location is set
func (l Location) Empty() bool {
	return l.Country == "" && l.Region == "" && l.City == "" &&
		l.Latitude == nil && l.Longitude == nil
}

// Geolocator maps an IP address to a coarse location, memoizing results per
// IP for the process lifetime. A given IP never re-triggers a network lookup
// once successfully cached.
type Geolocator struct {
	baseURL string
	client  *http.Client
	cache   *lru.Cache[string, Location]
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewGeolocator creates a geolocator backed by the ip-api.com JSON endpoint.
// An empty baseURL uses the public provider; tests point it at a local server.
// metrics may be nil.
func NewGeolocator(logger *observability.Logger, baseURL string, metrics *observability.Metrics) *Geolocator {
	if baseURL == "" {
		baseURL = "http://ip-api.com/json"
	}
	cache, _ := lru.New[string, Location](defaultGeoCacheSize)
	return &Geolocator{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

// Lookup resolves an IP to a location. On any provider error it returns an
// empty Location rather than failing; successful results are cached.
func (g *Geolocator) Lookup(ctx context.Context, ip string) Location {
	if loc, ok := g.cache.Get(ip); ok {
		if g.metrics != nil {
			g.metrics.GeoCacheHitsTotal.Inc()
		}
		return loc
	}
	if g.metrics != nil {
		g.metrics.GeoCacheMissesTotal.Inc()
	}

	loc, err := g.fetch(ctx, ip)
	if err != nil {
		g.logger.WithError(err).WithField("ip", ip).Debug("geolocation lookup failed")
		return Location{}
	}

	g.cache.Add(ip, loc)
	return loc
}

// CacheLen returns the number of memoized locations
func (g *Geolocator) CacheLen() int {
	return g.cache.Len()
}

// geoResponse is the ip-api.com JSON shape
type geoResponse struct {
	Status     string  `json:"status"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

func (g *Geolocator) fetch(ctx context.Context, ip string) (Location, error) {
	url := fmt.Sprintf("%s/%s", g.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Location{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Status == "fail" {
		return Location{}, fmt.Errorf("provider reported failure for %s", ip)
	}

	lat := body.Lat
	lon := body.Lon
	return Location{
		Country:   body.Country,
		Region:    body.RegionName,
		City:      body.City,
		Latitude:  &lat,
		Longitude: &lon,
	}, nil
}

// Distance returns the great-circle distance in miles between two points
// using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
