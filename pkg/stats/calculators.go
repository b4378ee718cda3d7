package stats

import (
	"math"
	"sort"
	"time"

	"github.com/Cheegro/milledright-timber-web/pkg/analytics"
)

// The calculators are pure functions over records already fetched from the
// store. Sorting is stable, so ties keep first-occurrence order and results
// are deterministic for a given input slice.

// counter tallies occurrences of string keys while preserving the order in
// which keys were first seen.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// sorted returns keys by descending count, ties by first occurrence,
// truncated to limit.
func (c *counter) sorted(limit int) []string {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	sort.SliceStable(keys, func(i, j int) bool {
		return c.counts[keys[i]] > c.counts[keys[j]]
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func (c *counter) total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// round2 rounds to two decimal places, the percentage convention used
// throughout the statistics surface.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TopPages groups page views by path and returns the most visited, capped
// at limit.
func TopPages(pageViews []*analytics.PageViewRecord, limit int) []PageCount {
	c := newCounter()
	for _, pv := range pageViews {
		if pv.Path != "" {
			c.add(pv.Path)
		}
	}
	result := []PageCount{}
	for _, path := range c.sorted(limit) {
		result = append(result, PageCount{Path: path, Count: c.counts[path]})
	}
	return result
}

// TopEvents groups events by name and returns the most frequent, capped
// at limit.
func TopEvents(events []*analytics.EventRecord, limit int) []EventCount {
	c := newCounter()
	for _, ev := range events {
		if ev.Name != "" {
			c.add(ev.Name)
		}
	}
	result := []EventCount{}
	for _, name := range c.sorted(limit) {
		result = append(result, EventCount{Name: name, Count: c.counts[name]})
	}
	return result
}

// UniqueVisitors counts distinct non-empty session ids across page views
func UniqueVisitors(pageViews []*analytics.PageViewRecord) int {
	seen := make(map[string]struct{})
	for _, pv := range pageViews {
		if pv.SessionID != "" {
			seen[pv.SessionID] = struct{}{}
		}
	}
	return len(seen)
}

// TopCountries groups page views by resolved country. Percentages are
// relative to records with a country set and sum to 100 modulo rounding.
func TopCountries(pageViews []*analytics.PageViewRecord, limit int) []CountryStat {
	c := newCounter()
	for _, pv := range pageViews {
		if pv.Country != "" {
			c.add(pv.Country)
		}
	}
	total := c.total()
	result := []CountryStat{}
	for _, country := range c.sorted(limit) {
		count := c.counts[country]
		result = append(result, CountryStat{
			Country:    country,
			Count:      count,
			Percentage: round2(float64(count) / float64(total) * 100),
		})
	}
	return result
}

// TopCities groups page views by "City, Country" pairs
func TopCities(pageViews []*analytics.PageViewRecord, limit int) []CityStat {
	c := newCounter()
	for _, pv := range pageViews {
		if pv.City == "" {
			continue
		}
		key := pv.City
		if pv.Country != "" {
			key = pv.City + ", " + pv.Country
		}
		c.add(key)
	}
	result := []CityStat{}
	for _, city := range c.sorted(limit) {
		result = append(result, CityStat{City: city, Count: c.counts[city]})
	}
	return result
}

// DeviceBreakdown groups page views by device type. Records without a
// device type do not count toward any bucket or the denominator.
func DeviceBreakdown(pageViews []*analytics.PageViewRecord) []BreakdownStat {
	c := newCounter()
	for _, pv := range pageViews {
		if pv.DeviceType != "" {
			c.add(pv.DeviceType)
		}
	}
	return breakdown(c)
}

// BrowserStats groups page views by browser, same denominator rule as
// DeviceBreakdown.
func BrowserStats(pageViews []*analytics.PageViewRecord) []BreakdownStat {
	c := newCounter()
	for _, pv := range pageViews {
		if pv.Browser != "" {
			c.add(pv.Browser)
		}
	}
	return breakdown(c)
}

func breakdown(c *counter) []BreakdownStat {
	total := c.total()
	result := []BreakdownStat{}
	for _, name := range c.sorted(0) {
		count := c.counts[name]
		result = append(result, BreakdownStat{
			Name:       name,
			Count:      count,
			Percentage: round2(float64(count) / float64(total) * 100),
		})
	}
	return result
}

// SplitPlatforms evaluates the mobile, desktop, and tablet predicates
// independently. A record without a mobile flag falls into none of them.
func SplitPlatforms(pageViews []*analytics.PageViewRecord) PlatformSplit {
	var split PlatformSplit
	for _, pv := range pageViews {
		if pv.DeviceType == "Tablet" {
			split.Tablet++
		}
		if pv.IsMobile == nil {
			continue
		}
		if *pv.IsMobile {
			split.Mobile++
		} else if pv.DeviceType != "Tablet" {
			split.Desktop++
		}
	}
	return split
}

// HourlyStats buckets page views into a 24-entry histogram by hour of day
// in the given location.
func HourlyStats(pageViews []*analytics.PageViewRecord, loc *time.Location) []int {
	if loc == nil {
		loc = time.UTC
	}
	hourly := make([]int, hoursPerDay)
	for _, pv := range pageViews {
		hourly[pv.CreatedAt.In(loc).Hour()]++
	}
	return hourly
}

// PeakHours returns the busiest hours of a 24-entry histogram, ties broken
// by ascending hour.
func PeakHours(hourly []int, limit int) []HourCount {
	hours := make([]int, len(hourly))
	for i := range hours {
		hours[i] = i
	}
	sort.SliceStable(hours, func(i, j int) bool {
		return hourly[hours[i]] > hourly[hours[j]]
	})
	if limit > 0 && len(hours) > limit {
		hours = hours[:limit]
	}
	result := []HourCount{}
	for _, h := range hours {
		result = append(result, HourCount{Hour: h, Views: hourly[h]})
	}
	return result
}

// SessionBehavior derives the bounce rate (percent, two decimals) and the
// average non-bounce session duration in whole minutes from page views
// grouped by session id. Zero sessions yields zero for both.
func SessionBehavior(pageViews []*analytics.PageViewRecord) (bounceRate float64, avgDurationMinutes int) {
	type sessionTimes struct {
		first time.Time
		last  time.Time
		count int
	}
	sessions := make(map[string]*sessionTimes)
	for _, pv := range pageViews {
		if pv.SessionID == "" {
			continue
		}
		st, ok := sessions[pv.SessionID]
		if !ok {
			sessions[pv.SessionID] = &sessionTimes{first: pv.CreatedAt, last: pv.CreatedAt, count: 1}
			continue
		}
		st.count++
		if pv.CreatedAt.Before(st.first) {
			st.first = pv.CreatedAt
		}
		if pv.CreatedAt.After(st.last) {
			st.last = pv.CreatedAt
		}
	}
	if len(sessions) == 0 {
		return 0, 0
	}

	bounces := 0
	var totalDuration time.Duration
	nonBounces := 0
	for _, st := range sessions {
		if st.count <= 1 {
			bounces++
			continue
		}
		nonBounces++
		totalDuration += st.last.Sub(st.first)
	}

	bounceRate = round2(float64(bounces) / float64(len(sessions)) * 100)
	if nonBounces > 0 {
		avgDurationMinutes = int(math.Round(totalDuration.Minutes() / float64(nonBounces)))
	}
	return bounceRate, avgDurationMinutes
}

// MergeRecent interleaves the newest page views and events into one feed
// sorted descending by timestamp, truncated to limit. Both inputs are
// expected newest-first.
func MergeRecent(pageViews []*analytics.PageViewRecord, events []*analytics.EventRecord, limit int) []ActivityItem {
	items := []ActivityItem{}
	for _, pv := range pageViews {
		items = append(items, ActivityItem{
			Kind:      ActivityPageView,
			Label:     pv.Path,
			Path:      pv.Path,
			SessionID: pv.SessionID,
			Country:   pv.Country,
			City:      pv.City,
			CreatedAt: pv.CreatedAt,
		})
	}
	for _, ev := range events {
		items = append(items, ActivityItem{
			Kind:      ActivityEvent,
			Label:     ev.Name,
			Path:      ev.Path,
			SessionID: ev.SessionID,
			Country:   ev.Country,
			City:      ev.City,
			CreatedAt: ev.CreatedAt,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
