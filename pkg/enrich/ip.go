package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Cheegro/milledright-timber-web/pkg/observability"
)

// ipFieldPreference is the order in which response fields are checked for an
// IP address. Different lookup services name the field differently.
var ipFieldPreference = []string{"ip", "query", "origin"}

// DefaultLookupEndpoints returns the ordered list of public IP lookup services
func DefaultLookupEndpoints() []string {
	return []string{
		"https://api.ipify.org?format=json",
		"https://ipapi.co/json/",
		"http://ip-api.com/json/",
		"https://httpbin.org/ip",
	}
}

// IPResolver obtains the caller's public IP address by trying an ordered list
// of external lookup services until one succeeds.
type IPResolver struct {
	endpoints []string
	client    *http.Client
	logger    *observability.Logger
}

// NewIPResolver creates an IP resolver. An empty endpoint list uses the
// default public services.
func NewIPResolver(logger *observability.Logger, endpoints []string) *IPResolver {
	if len(endpoints) == 0 {
		endpoints = DefaultLookupEndpoints()
	}
	return &IPResolver{
		endpoints: endpoints,
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
		logger: logger,
	}
}

// Resolve returns the first acceptable IP address from the endpoint chain.
// A failure at one endpoint is logged and the next is tried; if every
// endpoint fails the second return value is false. Resolve never returns
// a loopback address.
func (r *IPResolver) Resolve(ctx context.Context) (string, bool) {
	for _, endpoint := range r.endpoints {
		ip, err := r.lookup(ctx, endpoint)
		if err != nil {
			r.logger.WithError(err).WithField("endpoint", endpoint).Debug("ip lookup failed")
			continue
		}
		if !AcceptableIP(ip) {
			r.logger.WithFields(map[string]interface{}{
				"endpoint": endpoint,
				"ip":       ip,
			}).Debug("ip lookup returned unusable address")
			continue
		}
		return ip, true
	}
	return "", false
}

func (r *IPResolver) lookup(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	for _, field := range ipFieldPreference {
		if v, ok := body[field].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("no ip field in response")
}

// AcceptableIP reports whether a resolved address is usable for enrichment.
// Loopback addresses mean the lookup service echoed something local back.
func AcceptableIP(ip string) bool {
	switch ip {
	case "", "127.0.0.1", "localhost", "::1":
		return false
	}
	return true
}
