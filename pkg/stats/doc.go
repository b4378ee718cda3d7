// Package stats is the read side of the analytics pipeline: pure metric
// calculators over raw stored records and a service that fetches a time
// window of data, fans the calculators out concurrently, and assembles one
// composite statistics object.
//
// A failed computation degrades to a well-defined zero-value statistics
// object so dashboards always have something to render.
package stats
