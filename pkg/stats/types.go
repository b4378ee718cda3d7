package stats

import (
	"time"
)

// hoursPerDay sizes the hourly histogram
const hoursPerDay = 24

// PageCount is one entry of the top-pages list
type PageCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// EventCount is one entry of the top-events list
type EventCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CountryStat is one entry of the top-countries list. Percentage is
// relative to records that have a country resolved, two decimal places.
type CountryStat struct {
	Country    string  `json:"country"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CityStat is one entry of the top-cities list, keyed "City, Country"
type CityStat struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

// BreakdownStat is one bucket of the device or browser breakdown.
// Percentage is relative to records with the grouping field set.
type BreakdownStat struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PlatformSplit counts mobile, desktop, and tablet impressions. The three
// predicates are independent; a record without a mobile flag falls into
// none of the buckets.
type PlatformSplit struct {
	Mobile  int `json:"mobile"`
	Desktop int `json:"desktop"`
	Tablet  int `json:"tablet"`
}

// HourCount is one peak-hours entry
type HourCount struct {
	Hour  int `json:"hour"`
	Views int `json:"views"`
}

// Activity item kinds
const (
	ActivityPageView = "page_view"
	ActivityEvent    = "event"
)

// ActivityItem is one entry of the recent-activity feed, merged from the
// newest page views and events.
type ActivityItem struct {
	Kind      string    `json:"kind"`
	Label     string    `json:"label"`
	Path      string    `json:"path,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CompositeStatistics is the full aggregate for one time window.
// Derived, never persisted; slice fields are always non-nil and
// HourlyStats always has 24 entries.
type CompositeStatistics struct {
	WindowDays     int       `json:"window_days"`
	GeneratedAt    time.Time `json:"generated_at"`
	TotalPageViews int       `json:"total_page_views"`
	UniqueVisitors int       `json:"unique_visitors"`

	TopPages  []PageCount  `json:"top_pages"`
	TopEvents []EventCount `json:"top_events"`

	TopCountries []CountryStat `json:"top_countries"`
	TopCities    []CityStat    `json:"top_cities"`

	DeviceBreakdown []BreakdownStat `json:"device_breakdown"`
	BrowserStats    []BreakdownStat `json:"browser_stats"`
	PlatformSplit   PlatformSplit   `json:"platform_split"`

	HourlyStats []int       `json:"hourly_stats"`
	PeakHours   []HourCount `json:"peak_hours"`

	AvgSessionDuration int     `json:"avg_session_duration"`
	BounceRate         float64 `json:"bounce_rate"`

	RecentActivity []ActivityItem `json:"recent_activity"`
}

// ZeroStatistics is the degraded result returned when aggregation fails:
// all counts zero, all slices empty but non-nil, hourly histogram
// zero-filled.
func ZeroStatistics(windowDays int, now time.Time) CompositeStatistics {
	return CompositeStatistics{
		WindowDays:      windowDays,
		GeneratedAt:     now,
		TopPages:        []PageCount{},
		TopEvents:       []EventCount{},
		TopCountries:    []CountryStat{},
		TopCities:       []CityStat{},
		DeviceBreakdown: []BreakdownStat{},
		BrowserStats:    []BreakdownStat{},
		HourlyStats:     make([]int, hoursPerDay),
		PeakHours:       []HourCount{},
		RecentActivity:  []ActivityItem{},
	}
}
