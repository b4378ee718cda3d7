// Package storage defines the persistence surface for tracking records and
// provides backend selection. PostgreSQL is the production backend; SQLite
// serves small single-host deployments and local development.
package storage
