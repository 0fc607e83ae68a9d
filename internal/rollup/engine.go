package rollup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/WasiullahSahito/analytics/internal/event"
	"github.com/WasiullahSahito/analytics/internal/metrics"
	"go.uber.org/zap"
)

// EventSource reads raw events for an aggregation window.
type EventSource interface {
	EventsBetween(ctx context.Context, from, to time.Time) ([]*event.Event, error)
}

// MetricStore persists computed aggregates. Both upserts are full
// overwrites keyed by (postId, date) and date respectively, which is what
// makes re-running a day safe.
type MetricStore interface {
	UpsertPostMetrics(ctx context.Context, rows []*PostDailyMetric) error
	UpsertDailyMetric(ctx context.Context, m *DailyMetric) error
}

// Engine converts one day of raw events into daily aggregates. It holds
// no state between runs; the result is a function of the target day and
// the event store contents only.
type Engine struct {
	source EventSource
	store  MetricStore
	now    func() time.Time
	logger *zap.Logger
}

func NewEngine(source EventSource, store MetricStore, logger *zap.Logger) *Engine {
	return &Engine{
		source: source,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Run recomputes and persists the aggregates for the day containing
// target. Re-running with unchanged events yields identical rows.
func (e *Engine) Run(ctx context.Context, target time.Time) error {
	day := DayStart(target)
	next := day.Add(24 * time.Hour)
	started := e.now()

	events, err := e.source.EventsBetween(ctx, day, next)
	if err != nil {
		metrics.RollupFailures.Inc()
		return fmt.Errorf("rollup %s: load events: %w", day.Format("2006-01-02"), err)
	}

	posts, daily := aggregate(events, day)
	daily.GeneratedAt = e.now()

	if len(posts) > 0 {
		if err := e.store.UpsertPostMetrics(ctx, posts); err != nil {
			metrics.RollupFailures.Inc()
			return fmt.Errorf("rollup %s: upsert post metrics: %w", day.Format("2006-01-02"), err)
		}
	}

	if err := e.store.UpsertDailyMetric(ctx, daily); err != nil {
		metrics.RollupFailures.Inc()
		return fmt.Errorf("rollup %s: upsert daily metric: %w", day.Format("2006-01-02"), err)
	}

	metrics.RollupRuns.Inc()
	metrics.RollupDuration.Observe(e.now().Sub(started).Seconds())

	e.logger.Info("Rollup completed",
		zap.String("day", day.Format("2006-01-02")),
		zap.Int("events", len(events)),
		zap.Int("posts", len(posts)),
		zap.Int64("active_users", daily.ActiveUsers),
	)

	return nil
}

// RunRange executes one run per day in [from, to], oldest first, so a
// historical backfill never holds more than a single day's working set.
func (e *Engine) RunRange(ctx context.Context, from, to time.Time) error {
	for day := DayStart(from); !day.After(DayStart(to)); day = day.Add(24 * time.Hour) {
		if err := e.Run(ctx, day); err != nil {
			return err
		}
	}
	return nil
}

// aggregate folds a day of events into per-post counters and the global
// row. Global totals are summed from the per-post pass, never recomputed
// independently, so the two tables cannot drift.
func aggregate(events []*event.Event, day time.Time) ([]*PostDailyMetric, *DailyMetric) {
	byPost := make(map[string]*PostDailyMetric)
	users := make(map[string]struct{})

	for _, ev := range events {
		if ev.UserID != nil {
			users[ev.UserID.String()] = struct{}{}
		}

		if ev.PostID == nil || *ev.PostID == "" {
			continue
		}

		row, ok := byPost[*ev.PostID]
		if !ok {
			row = &PostDailyMetric{PostID: *ev.PostID, Date: day}
			byPost[*ev.PostID] = row
		}

		switch ev.EventType {
		case event.EventTypePostView:
			row.Views++
		case event.EventTypePostLike:
			row.Likes++
		case event.EventTypeCommentCreate:
			row.Comments++
		}
	}

	posts := make([]*PostDailyMetric, 0, len(byPost))
	for _, row := range byPost {
		posts = append(posts, row)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].PostID < posts[j].PostID })

	daily := &DailyMetric{
		Date:        day,
		ActiveUsers: int64(len(users)),
	}
	for _, row := range posts {
		daily.TotalViews += row.Views
		daily.TotalLikes += row.Likes
		daily.TotalComments += row.Comments
	}

	return posts, daily
}
