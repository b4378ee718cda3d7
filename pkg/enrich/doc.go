// Package enrich augments raw tracked records with derived facts before they
// are persisted: the caller's public IP address, coarse geolocation,
// device/browser/OS classification, and per-process session bookkeeping.
//
// Every component degrades gracefully. A failed lookup leaves its fields
// absent on the enriched record; nothing in this package returns an error to
// the tracking path.
package enrich
