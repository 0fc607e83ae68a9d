package query

import (
	"context"
	"fmt"
	"time"

	"github.com/WasiullahSahito/analytics/internal/rollup"
	"go.uber.org/zap"
)

var validMetrics = map[string]struct{}{
	"views":    {},
	"likes":    {},
	"comments": {},
}

type Service struct {
	repo   Repository
	now    func() time.Time
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Overview returns the DAU trend and summed totals for [from, to], plus
// the five most viewed posts of the period.
func (s *Service) Overview(ctx context.Context, from, to time.Time) (*Overview, error) {
	dailies, err := s.repo.DailyMetricsBetween(ctx, from, to)
	if err != nil {
		s.logger.Error("Failed to get daily metrics", zap.Error(err))
		return nil, fmt.Errorf("failed to get overview: %w", err)
	}

	overview := &Overview{
		DAUTrend: make([]DailyActive, 0, len(dailies)),
		TopPosts: []*PostTotal{},
	}
	for _, d := range dailies {
		overview.DAUTrend = append(overview.DAUTrend, DailyActive{
			Date:   formatDay(d.Date),
			Active: d.ActiveUsers,
		})
		overview.Totals.Views += d.TotalViews
		overview.Totals.Likes += d.TotalLikes
		overview.Totals.Comments += d.TotalComments
	}

	top, err := s.repo.TopPosts(ctx, from, to, "views", 5)
	if err != nil {
		s.logger.Error("Failed to get top posts", zap.Error(err))
		return nil, fmt.Errorf("failed to get overview: %w", err)
	}
	overview.TopPosts = top

	return overview, nil
}

// ActiveUsers returns the daily active-user series for the trailing
// window of the given length in days.
func (s *Service) ActiveUsers(ctx context.Context, window int) (*ActiveUsersSeries, error) {
	to := s.now()
	from := to.AddDate(0, 0, -window)

	dailies, err := s.repo.DailyMetricsBetween(ctx, from, to)
	if err != nil {
		s.logger.Error("Failed to get active user series", zap.Error(err))
		return nil, fmt.Errorf("failed to get active users: %w", err)
	}

	series := make([]DailyActive, 0, len(dailies))
	for _, d := range dailies {
		series = append(series, DailyActive{Date: formatDay(d.Date), Active: d.ActiveUsers})
	}

	return &ActiveUsersSeries{
		Granularity: "daily",
		Window:      window,
		Series:      series,
	}, nil
}

// Retention computes dN retention for the cohort of users who registered
// on cohortStart. A user counts as retained on day N when they produced
// at least one activity event in [cohortStart+N, cohortStart+N+1); the
// rate is distinct retained users over cohort size, so it is bounded by
// 100%.
func (s *Service) Retention(ctx context.Context, cohortStart time.Time, windows []int) (*Retention, error) {
	cohortDay := rollup.DayStart(cohortStart)
	cohort, err := s.repo.RegisteredUsers(ctx, cohortDay, cohortDay.Add(24*time.Hour))
	if err != nil {
		s.logger.Error("Failed to get cohort", zap.Error(err))
		return nil, fmt.Errorf("failed to get retention: %w", err)
	}

	result := &Retention{
		CohortDate: formatDay(cohortDay),
		CohortSize: len(cohort),
		Retention:  make(map[string]float64, len(windows)),
	}
	if len(cohort) == 0 {
		return result, nil
	}

	for _, day := range windows {
		windowStart := cohortDay.AddDate(0, 0, day)
		windowEnd := windowStart.Add(24 * time.Hour)

		_, retained, err := s.repo.CountActivity(ctx, cohort, windowStart, windowEnd)
		if err != nil {
			s.logger.Error("Failed to count retained users",
				zap.Int("window", day),
				zap.Error(err),
			)
			return nil, fmt.Errorf("failed to get retention: %w", err)
		}

		result.Retention[fmt.Sprintf("d%d", day)] = float64(retained) / float64(len(cohort)) * 100
	}

	return result, nil
}

// TopPosts sums the chosen counter per post over the trailing period and
// returns the top N in descending order.
func (s *Service) TopPosts(ctx context.Context, metric string, period, limit int) (*TopPosts, error) {
	if _, ok := validMetrics[metric]; !ok {
		return nil, ErrInvalidMetric
	}

	to := s.now()
	from := to.AddDate(0, 0, -period)

	items, err := s.repo.TopPosts(ctx, from, to, metric, limit)
	if err != nil {
		s.logger.Error("Failed to get top posts", zap.Error(err))
		return nil, fmt.Errorf("failed to get top posts: %w", err)
	}

	return &TopPosts{Metric: metric, Period: period, Items: items}, nil
}

// PostDetails returns a post's full daily series with period totals and
// engagement rates derived from them.
func (s *Service) PostDetails(ctx context.Context, postID string) (*PostDetails, error) {
	rows, err := s.repo.PostMetricsByPost(ctx, postID)
	if err != nil {
		s.logger.Error("Failed to get post metrics",
			zap.String("post_id", postID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get post details: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrPostNotFound
	}

	details := &PostDetails{
		PostID:      postID,
		DailySeries: make([]PostDailyPoint, 0, len(rows)),
	}
	for _, row := range rows {
		details.DailySeries = append(details.DailySeries, PostDailyPoint{
			Date:     formatDay(row.Date),
			Views:    row.Views,
			Likes:    row.Likes,
			Comments: row.Comments,
		})
		details.Totals.Views += row.Views
		details.Totals.Likes += row.Likes
		details.Totals.Comments += row.Comments
	}

	if details.Totals.Views > 0 {
		details.EngagementRate.Likes = float64(details.Totals.Likes) / float64(details.Totals.Views) * 100
		details.EngagementRate.Comments = float64(details.Totals.Comments) / float64(details.Totals.Views) * 100
	}

	return details, nil
}

func (s *Service) TrendingSearches(ctx context.Context, period, limit int) (*TrendingSearches, error) {
	to := s.now()
	from := to.AddDate(0, 0, -period)

	items, err := s.repo.TrendingSearches(ctx, from, to, limit)
	if err != nil {
		s.logger.Error("Failed to get trending searches", zap.Error(err))
		return nil, fmt.Errorf("failed to get trending searches: %w", err)
	}

	return &TrendingSearches{Period: period, Items: items}, nil
}
