package rollup

import (
	"context"
	"fmt"

	"github.com/WasiullahSahito/analytics/pkg/postgres"
	"go.uber.org/zap"
)

// Repository is the SQL MetricStore. The rollup engine is its only
// writer; the query layer reads the same tables through its own
// repository.
type Repository struct {
	db     *postgres.DB
	logger *zap.Logger
}

func NewRepository(db *postgres.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) UpsertPostMetrics(ctx context.Context, rows []*PostDailyMetric) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO post_daily_metrics (post_id, date, views, likes, comments)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (post_id, date)
		DO UPDATE SET
			views = EXCLUDED.views,
			likes = EXCLUDED.likes,
			comments = EXCLUDED.comments
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.PostID, row.Date, row.Views, row.Likes, row.Comments); err != nil {
			r.logger.Error("Failed to upsert post metric",
				zap.String("post_id", row.PostID),
				zap.Error(err),
			)
			return fmt.Errorf("failed to upsert post metric: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit post metrics: %w", err)
	}

	r.logger.Debug("Post metrics upserted", zap.Int("rows", len(rows)))

	return nil
}

func (r *Repository) UpsertDailyMetric(ctx context.Context, m *DailyMetric) error {
	query := `
		INSERT INTO daily_metrics (date, active_users, total_views, total_likes, total_comments, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date)
		DO UPDATE SET
			active_users = EXCLUDED.active_users,
			total_views = EXCLUDED.total_views,
			total_likes = EXCLUDED.total_likes,
			total_comments = EXCLUDED.total_comments,
			generated_at = EXCLUDED.generated_at
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		m.Date,
		m.ActiveUsers,
		m.TotalViews,
		m.TotalLikes,
		m.TotalComments,
		m.GeneratedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert daily metric",
			zap.String("date", m.Date.Format("2006-01-02")),
			zap.Error(err),
		)
		return fmt.Errorf("failed to upsert daily metric: %w", err)
	}

	return nil
}
