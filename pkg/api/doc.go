// Package api exposes the HTTP surface of the analytics service: the public
// track endpoints consumed by the website's browser snippet, the statistics
// endpoints consumed by the admin dashboard, and the health probes.
//
// Track endpoints acknowledge with 202 Accepted and do the enrichment and
// store write in the background; a slow geolocation provider never delays
// the visitor's browser.
package api
