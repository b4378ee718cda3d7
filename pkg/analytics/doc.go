// Package analytics implements the tracking side of the telemetry pipeline:
// raw record models, the tracking suppression policy, best-effort third-party
// tag forwarding, and the Tracker that enriches and persists browser events.
//
// Telemetry is strictly best-effort. Suppression is a deliberate no-op,
// enrichment failures degrade to partially-filled records, and store write
// failures are logged and swallowed; nothing in this package propagates an
// error back to the host request.
package analytics
