package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheegro/milledright-timber-web/pkg/analytics"
)

func pv(mutate func(*analytics.PageViewRecord)) *analytics.PageViewRecord {
	rec := &analytics.PageViewRecord{Path: "/", CreatedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)}
	if mutate != nil {
		mutate(rec)
	}
	return rec
}

func pvCountry(country string) *analytics.PageViewRecord {
	return pv(func(r *analytics.PageViewRecord) { r.Country = country })
}

func TestTopPages(t *testing.T) {
	views := []*analytics.PageViewRecord{
		pv(func(r *analytics.PageViewRecord) { r.Path = "/products" }),
		pv(func(r *analytics.PageViewRecord) { r.Path = "/" }),
		pv(func(r *analytics.PageViewRecord) { r.Path = "/products" }),
		pv(func(r *analytics.PageViewRecord) { r.Path = "/contact" }),
		pv(func(r *analytics.PageViewRecord) { r.Path = "/products" }),
		pv(func(r *analytics.PageViewRecord) { r.Path = "/" }),
	}

	top := TopPages(views, 2)
	require.Len(t, top, 2)
	assert.Equal(t, PageCount{Path: "/products", Count: 3}, top[0])
	assert.Equal(t, PageCount{Path: "/", Count: 2}, top[1])
}

func TestTopPages_TiesKeepFirstOccurrence(t *testing.T) {
	views := []*analytics.PageViewRecord{
		pv(func(r *analytics.PageViewRecord) { r.Path = "/b" }),
		pv(func(r *analytics.PageViewRecord) { r.Path = "/a" }),
		pv(func(r *analytics.PageViewRecord) { r.Path = "/b" }),
		pv(func(r *analytics.PageViewRecord) { r.Path = "/a" }),
	}

	top := TopPages(views, 10)
	require.Len(t, top, 2)
	assert.Equal(t, "/b", top[0].Path)
	assert.Equal(t, "/a", top[1].Path)
}

func TestTopEvents(t *testing.T) {
	events := []*analytics.EventRecord{
		{Name: "page_view"}, {Name: "quote_request"}, {Name: "page_view"},
	}
	top := TopEvents(events, 10)
	require.Len(t, top, 2)
	assert.Equal(t, EventCount{Name: "page_view", Count: 2}, top[0])
	assert.Equal(t, EventCount{Name: "quote_request", Count: 1}, top[1])
}

func TestUniqueVisitors(t *testing.T) {
	views := []*analytics.PageViewRecord{
		pv(func(r *analytics.PageViewRecord) { r.SessionID = "a" }),
		pv(func(r *analytics.PageViewRecord) { r.SessionID = "a" }),
		pv(func(r *analytics.PageViewRecord) { r.SessionID = "b" }),
		pv(nil),
	}
	assert.Equal(t, 2, UniqueVisitors(views))
}

func TestTopCountries(t *testing.T) {
	views := []*analytics.PageViewRecord{
		pvCountry("Canada"), pvCountry("Canada"), pvCountry("Canada"), pvCountry("USA"),
	}

	top := TopCountries(views, 10)
	require.Len(t, top, 2)
	assert.Equal(t, CountryStat{Country: "Canada", Count: 3, Percentage: 75.0}, top[0])
	assert.Equal(t, CountryStat{Country: "USA", Count: 1, Percentage: 25.0}, top[1])
	assert.InDelta(t, 100.0, top[0].Percentage+top[1].Percentage, 0.001)
}

func TestTopCountries_DenominatorExcludesUnresolved(t *testing.T) {
	views := []*analytics.PageViewRecord{
		pvCountry("Canada"), pvCountry("Canada"), pvCountry(""),
	}

	top := TopCountries(views, 10)
	require.Len(t, top, 1)
	assert.Equal(t, 100.0, top[0].Percentage)
}

func TestTopCountries_TwoDecimalRounding(t *testing.T) {
	views := []*analytics.PageViewRecord{
		pvCountry("Canada"), pvCountry("Canada"), pvCountry("USA"),
	}

	top := TopCountries(views, 10)
	require.Len(t, top, 2)
	assert.Equal(t, 66.67, top[0].Percentage)
	assert.Equal(t, 33.33, top[1].Percentage)
}

func TestTopCities(t *testing.T) {
	views := []*analytics.PageViewRecord{
		pv(func(r *analytics.PageViewRecord) { r.City = "Huntsville"; r.Country = "Canada" }),
		pv(func(r *analytics.PageViewRecord) { r.City = "Huntsville"; r.Country = "Canada" }),
		pv(func(r *analytics.PageViewRecord) { r.City = "Toronto"; r.Country = "Canada" }),
		pv(nil),
	}

	top := TopCities(views, 10)
	require.Len(t, top, 2)
	assert.Equal(t, CityStat{City: "Huntsville, Canada", Count: 2}, top[0])
	assert.Equal(t, CityStat{City: "Toronto, Canada", Count: 1}, top[1])
}

func TestDeviceBreakdown(t *testing.T) {
	views := []*analytics.PageViewRecord{
		pv(func(r *analytics.PageViewRecord) { r.DeviceType = "Desktop" }),
		pv(func(r *analytics.PageViewRecord) { r.DeviceType = "Desktop" }),
		pv(func(r *analytics.PageViewRecord) { r.DeviceType = "Mobile" }),
		pv(nil), // no device type, excluded from the denominator
	}

	breakdown := DeviceBreakdown(views)
	require.Len(t, breakdown, 2)
	assert.Equal(t, BreakdownStat{Name: "Desktop", Count: 2, Percentage: 66.67}, breakdown[0])
	assert.Equal(t, BreakdownStat{Name: "Mobile", Count: 1, Percentage: 33.33}, breakdown[1])
}

func TestBrowserStats(t *testing.T) {
	views := []*analytics.PageViewRecord{
		pv(func(r *analytics.PageViewRecord) { r.Browser = "Chrome 120" }),
		pv(func(r *analytics.PageViewRecord) { r.Browser = "Firefox 121" }),
		pv(func(r *analytics.PageViewRecord) { r.Browser = "Chrome 120" }),
	}

	browsers := BrowserStats(views)
	require.Len(t, browsers, 2)
	assert.Equal(t, "Chrome 120", browsers[0].Name)
	assert.Equal(t, 66.67, browsers[0].Percentage)
}

func TestSplitPlatforms(t *testing.T) {
	mobileTrue := true
	mobileFalse := false
	views := []*analytics.PageViewRecord{
		pv(func(r *analytics.PageViewRecord) { r.IsMobile = &mobileTrue; r.DeviceType = "Mobile" }),
		pv(func(r *analytics.PageViewRecord) { r.IsMobile = &mobileFalse; r.DeviceType = "Desktop" }),
		pv(func(r *analytics.PageViewRecord) { r.IsMobile = &mobileTrue; r.DeviceType = "Tablet" }),
		pv(nil), // no mobile flag, lands in no bucket
	}

	split := SplitPlatforms(views)
	assert.Equal(t, 2, split.Mobile)
	assert.Equal(t, 1, split.Desktop)
	assert.Equal(t, 1, split.Tablet)
}

func TestHourlyStatsAndPeakHours(t *testing.T) {
	at := func(hour int) *analytics.PageViewRecord {
		return pv(func(r *analytics.PageViewRecord) {
			r.CreatedAt = time.Date(2026, 8, 20, hour, 15, 0, 0, time.UTC)
		})
	}
	views := []*analytics.PageViewRecord{at(0), at(0), at(13)}

	hourly := HourlyStats(views, time.UTC)
	require.Len(t, hourly, 24)
	assert.Equal(t, 2, hourly[0])
	assert.Equal(t, 1, hourly[13])
	for h, count := range hourly {
		if h != 0 && h != 13 {
			assert.Zero(t, count, "hour %d", h)
		}
	}

	peaks := PeakHours(hourly, 1)
	require.Len(t, peaks, 1)
	assert.Equal(t, HourCount{Hour: 0, Views: 2}, peaks[0])
}

func TestHourlyStats_UsesLocation(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	// 02:00 UTC in August is 22:00 the previous evening in Toronto.
	views := []*analytics.PageViewRecord{
		pv(func(r *analytics.PageViewRecord) {
			r.CreatedAt = time.Date(2026, 8, 20, 2, 0, 0, 0, time.UTC)
		}),
	}

	hourly := HourlyStats(views, toronto)
	assert.Equal(t, 1, hourly[22])
	assert.Equal(t, 0, hourly[2])
}

func TestPeakHours_TiesByAscendingHour(t *testing.T) {
	hourly := make([]int, 24)
	hourly[9] = 3
	hourly[14] = 3
	hourly[20] = 1

	peaks := PeakHours(hourly, 3)
	require.Len(t, peaks, 3)
	assert.Equal(t, 9, peaks[0].Hour)
	assert.Equal(t, 14, peaks[1].Hour)
	assert.Equal(t, 20, peaks[2].Hour)
}

func TestSessionBehavior(t *testing.T) {
	at := func(session string, minute int) *analytics.PageViewRecord {
		return pv(func(r *analytics.PageViewRecord) {
			r.SessionID = session
			r.CreatedAt = time.Date(2026, 8, 20, 9, minute, 0, 0, time.UTC)
		})
	}
	views := []*analytics.PageViewRecord{
		at("a", 0), at("a", 5), at("a", 10),
		at("b", 3),
	}

	bounceRate, avgMinutes := SessionBehavior(views)
	assert.Equal(t, 50.0, bounceRate)
	assert.Equal(t, 10, avgMinutes)
}

func TestSessionBehavior_Empty(t *testing.T) {
	bounceRate, avgMinutes := SessionBehavior(nil)
	assert.Zero(t, bounceRate)
	assert.Zero(t, avgMinutes)
}

func TestSessionBehavior_AllBounces(t *testing.T) {
	views := []*analytics.PageViewRecord{
		pv(func(r *analytics.PageViewRecord) { r.SessionID = "a" }),
		pv(func(r *analytics.PageViewRecord) { r.SessionID = "b" }),
	}

	bounceRate, avgMinutes := SessionBehavior(views)
	assert.Equal(t, 100.0, bounceRate)
	assert.Zero(t, avgMinutes)
}

func TestMergeRecent(t *testing.T) {
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	views := []*analytics.PageViewRecord{
		pv(func(r *analytics.PageViewRecord) { r.Path = "/new"; r.CreatedAt = base.Add(3 * time.Minute) }),
		pv(func(r *analytics.PageViewRecord) { r.Path = "/old"; r.CreatedAt = base.Add(1 * time.Minute) }),
	}
	events := []*analytics.EventRecord{
		{Name: "quote_request", CreatedAt: base.Add(2 * time.Minute)},
		{Name: "click", CreatedAt: base},
	}

	feed := MergeRecent(views, events, 3)
	require.Len(t, feed, 3)
	assert.Equal(t, "/new", feed[0].Label)
	assert.Equal(t, ActivityPageView, feed[0].Kind)
	assert.Equal(t, "quote_request", feed[1].Label)
	assert.Equal(t, ActivityEvent, feed[1].Kind)
	assert.Equal(t, "/old", feed[2].Label)
}

func TestMergeRecent_EmptyInputsYieldEmptyFeed(t *testing.T) {
	feed := MergeRecent(nil, nil, 10)
	assert.NotNil(t, feed)
	assert.Empty(t, feed)
}
