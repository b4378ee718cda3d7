// Package async provides safe goroutine helpers for fire-and-forget work.
//
// The tracking pipeline uses SafeGo for store writes and third-party tag
// forwarding: telemetry must never block or crash the host request, so
// background tasks get panic recovery, a bounded timeout, and error logging.
package async
