package query

import (
	"context"
	"fmt"
	"time"

	"github.com/WasiullahSahito/analytics/internal/event"
	"github.com/WasiullahSahito/analytics/internal/rollup"
	"github.com/WasiullahSahito/analytics/pkg/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Repository is the read side over the metric tables and, for cohort
// lookups, the raw event store. It never writes.
type Repository interface {
	DailyMetricsBetween(ctx context.Context, from, to time.Time) ([]*rollup.DailyMetric, error)
	PostMetricsByPost(ctx context.Context, postID string) ([]*rollup.PostDailyMetric, error)
	TopPosts(ctx context.Context, from, to time.Time, metric string, limit int) ([]*PostTotal, error)
	RegisteredUsers(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)
	CountActivity(ctx context.Context, userIDs []uuid.UUID, from, to time.Time) (events int64, users int64, err error)
	TrendingSearches(ctx context.Context, from, to time.Time, limit int) ([]*SearchTerm, error)
}

type repository struct {
	db     *postgres.DB
	logger *zap.Logger
}

func NewRepository(db *postgres.DB, logger *zap.Logger) Repository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

func (r *repository) DailyMetricsBetween(ctx context.Context, from, to time.Time) ([]*rollup.DailyMetric, error) {
	query := `
		SELECT date, active_users, total_views, total_likes, total_comments, generated_at
		FROM daily_metrics
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC
	`

	var rows []*rollup.DailyMetric
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to get daily metrics: %w", err)
	}

	return rows, nil
}

func (r *repository) PostMetricsByPost(ctx context.Context, postID string) ([]*rollup.PostDailyMetric, error) {
	query := `
		SELECT post_id, date, views, likes, comments
		FROM post_daily_metrics
		WHERE post_id = $1
		ORDER BY date ASC
	`

	var rows []*rollup.PostDailyMetric
	if err := r.db.SelectContext(ctx, &rows, query, postID); err != nil {
		return nil, fmt.Errorf("failed to get post metrics: %w", err)
	}

	return rows, nil
}

// TopPosts sums one counter per post over the range and returns the
// highest N. metric is interpolated into the statement and must come
// from the service's whitelist.
func (r *repository) TopPosts(ctx context.Context, from, to time.Time, metric string, limit int) ([]*PostTotal, error) {
	query := fmt.Sprintf(`
		SELECT post_id, SUM(%s) AS value
		FROM post_daily_metrics
		WHERE date >= $1 AND date <= $2
		GROUP BY post_id
		ORDER BY value DESC
		LIMIT $3
	`, metric)

	var rows []*PostTotal
	if err := r.db.SelectContext(ctx, &rows, query, from, to, limit); err != nil {
		return nil, fmt.Errorf("failed to get top posts: %w", err)
	}

	return rows, nil
}

func (r *repository) RegisteredUsers(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT user_id
		FROM events
		WHERE event_type = $1
		  AND user_id IS NOT NULL
		  AND created_at >= $2 AND created_at < $3
	`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, event.EventTypeRegister, from, to); err != nil {
		return nil, fmt.Errorf("failed to get registered users: %w", err)
	}

	return ids, nil
}

// CountActivity counts qualifying activity events for the given users in
// [from, to), along with the number of distinct users among them.
func (r *repository) CountActivity(ctx context.Context, userIDs []uuid.UUID, from, to time.Time) (int64, int64, error) {
	if len(userIDs) == 0 {
		return 0, 0, nil
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT COUNT(*), COUNT(DISTINCT user_id)
		FROM events
		WHERE user_id = ANY($1)
		  AND event_type = ANY($2)
		  AND created_at >= $3 AND created_at < $4
	`

	var events, users int64
	err := r.db.QueryRowContext(ctx, query,
		pq.Array(ids), pq.Array(event.ActiveEventTypes), from, to,
	).Scan(&events, &users)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count activity: %w", err)
	}

	return events, users, nil
}

func (r *repository) TrendingSearches(ctx context.Context, from, to time.Time, limit int) ([]*SearchTerm, error) {
	query := `
		SELECT LOWER(metadata->>'query') AS term, COUNT(*) AS count
		FROM events
		WHERE event_type = $1
		  AND COALESCE(metadata->>'query', '') <> ''
		  AND created_at >= $2 AND created_at < $3
		GROUP BY term
		ORDER BY count DESC
		LIMIT $4
	`

	var rows []*SearchTerm
	if err := r.db.SelectContext(ctx, &rows, query, event.EventTypeSearch, from, to, limit); err != nil {
		return nil, fmt.Errorf("failed to get trending searches: %w", err)
	}

	return rows, nil
}
