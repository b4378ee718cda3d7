package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Cheegro/milledright-timber-web/pkg/analytics"
	"github.com/Cheegro/milledright-timber-web/pkg/observability"
)

// Defaults for the exposed query surface
const (
	DefaultWindowDays    = 30
	DefaultTopLimit      = 10
	DefaultPeakHours     = 3
	DefaultRecentLimit   = 20
	defaultRecentInStats = 10
)

// Source is the read surface the service consumes. pkg/storage implements it.
type Source interface {
	CountPageViews(ctx context.Context, since time.Time) (int, error)
	QueryPageViews(ctx context.Context, since time.Time) ([]*analytics.PageViewRecord, error)
	QueryEvents(ctx context.Context, since time.Time) ([]*analytics.EventRecord, error)
	RecentPageViews(ctx context.Context, limit int) ([]*analytics.PageViewRecord, error)
	RecentEvents(ctx context.Context, limit int) ([]*analytics.EventRecord, error)
}

// Service computes composite statistics over a time window
type Service struct {
	source  Source
	cache   *Cache
	logger  *observability.Logger
	metrics *observability.Metrics

	// loc decides which wall clock the hourly histogram uses, typically
	// the business's timezone.
	loc *time.Location
	now func() time.Time
}

// NewService creates the statistics service. cache may be nil to disable
// caching; loc may be nil for UTC.
func NewService(source Source, cache *Cache, logger *observability.Logger, metrics *observability.Metrics, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		source:  source,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		loc:     loc,
		now:     time.Now,
	}
}

// ComputeStatistics assembles the full statistics object for the trailing
// windowDays days (default 30 when non-positive). On any fetch failure it
// returns the zero-value statistics rather than an error.
func (s *Service) ComputeStatistics(ctx context.Context, windowDays int) CompositeStatistics {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	if cached, ok := s.cache.Get(ctx, windowDays); ok {
		return cached
	}

	return s.recompute(ctx, windowDays)
}

// RefreshStatistics recomputes a window and overwrites any cached entry,
// restarting its TTL. Cache warmers use this to keep entries hot without
// waiting for expiry.
func (s *Service) RefreshStatistics(ctx context.Context, windowDays int) CompositeStatistics {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return s.recompute(ctx, windowDays)
}

func (s *Service) recompute(ctx context.Context, windowDays int) CompositeStatistics {
	start := s.now()
	result, err := s.compute(ctx, windowDays)
	if s.metrics != nil {
		s.metrics.StatsComputeDuration.WithLabelValues(fmt.Sprintf("%dd", windowDays)).
			Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.WithError(err).WithField("window_days", windowDays).
			Error("Statistics computation failed, returning zero statistics")
		return ZeroStatistics(windowDays, s.now().UTC())
	}

	s.cache.Set(ctx, windowDays, result)
	return result
}

func (s *Service) compute(ctx context.Context, windowDays int) (CompositeStatistics, error) {
	since := s.now().UTC().AddDate(0, 0, -windowDays)

	var (
		totalViews   int
		pageViews    []*analytics.PageViewRecord
		events       []*analytics.EventRecord
		recentViews  []*analytics.PageViewRecord
		recentEvents []*analytics.EventRecord
	)

	// Independent fetches fan out; the calculators need all of them.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totalViews, err = s.source.CountPageViews(gctx, since)
		return err
	})
	g.Go(func() error {
		var err error
		pageViews, err = s.source.QueryPageViews(gctx, since)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.source.QueryEvents(gctx, since)
		return err
	})
	perSource := recentPerSource(defaultRecentInStats)
	g.Go(func() error {
		var err error
		recentViews, err = s.source.RecentPageViews(gctx, perSource)
		return err
	})
	g.Go(func() error {
		var err error
		recentEvents, err = s.source.RecentEvents(gctx, perSource)
		return err
	})
	if err := g.Wait(); err != nil {
		return CompositeStatistics{}, err
	}

	result := CompositeStatistics{
		WindowDays:     windowDays,
		GeneratedAt:    s.now().UTC(),
		TotalPageViews: totalViews,
	}

	// The calculators are independent pure functions; run them as a second
	// fan-out over the fetched slices.
	cg, _ := errgroup.WithContext(ctx)
	cg.Go(func() error {
		result.UniqueVisitors = UniqueVisitors(pageViews)
		return nil
	})
	cg.Go(func() error {
		result.TopPages = TopPages(pageViews, DefaultTopLimit)
		return nil
	})
	cg.Go(func() error {
		result.TopEvents = TopEvents(events, DefaultTopLimit)
		return nil
	})
	cg.Go(func() error {
		result.TopCountries = TopCountries(pageViews, DefaultTopLimit)
		result.TopCities = TopCities(pageViews, DefaultTopLimit)
		return nil
	})
	cg.Go(func() error {
		result.DeviceBreakdown = DeviceBreakdown(pageViews)
		result.BrowserStats = BrowserStats(pageViews)
		result.PlatformSplit = SplitPlatforms(pageViews)
		return nil
	})
	cg.Go(func() error {
		result.HourlyStats = HourlyStats(pageViews, s.loc)
		result.PeakHours = PeakHours(result.HourlyStats, DefaultPeakHours)
		return nil
	})
	cg.Go(func() error {
		result.BounceRate, result.AvgSessionDuration = SessionBehavior(pageViews)
		return nil
	})
	cg.Go(func() error {
		result.RecentActivity = MergeRecent(recentViews, recentEvents, defaultRecentInStats)
		return nil
	})
	cg.Wait()

	return result, nil
}

// RecentActivity serves the standalone recent-activity feed: the newest
// page views and events fetched independently and merged by timestamp.
// Failures degrade to an empty feed.
func (s *Service) RecentActivity(ctx context.Context, limit int) []ActivityItem {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	perSource := recentPerSource(limit)

	var (
		recentViews  []*analytics.PageViewRecord
		recentEvents []*analytics.EventRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recentViews, err = s.source.RecentPageViews(gctx, perSource)
		return err
	})
	g.Go(func() error {
		var err error
		recentEvents, err = s.source.RecentEvents(gctx, perSource)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.WithError(err).Error("Recent activity fetch failed, returning empty feed")
		return []ActivityItem{}
	}

	return MergeRecent(recentViews, recentEvents, limit)
}

// recentPerSource splits a feed limit across the two record sources
func recentPerSource(limit int) int {
	return int(math.Ceil(float64(limit) / 2))
}
