// Package middleware provides the HTTP middleware specific to the tracking
// API, currently per-client rate limiting for the public track endpoints.
// Generic request middleware (logging, recovery, CORS) lives in pkg/httputil.
package middleware
