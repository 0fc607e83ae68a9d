package rollup

import "time"

// DailyMetric is the single global row per calendar day. Every numeric
// field is fully overwritten on each rollup run for that day.
type DailyMetric struct {
	Date          time.Time `db:"date" json:"date"`
	ActiveUsers   int64     `db:"active_users" json:"activeUsers"`
	TotalViews    int64     `db:"total_views" json:"totalViews"`
	TotalLikes    int64     `db:"total_likes" json:"totalLikes"`
	TotalComments int64     `db:"total_comments" json:"totalComments"`
	GeneratedAt   time.Time `db:"generated_at" json:"generatedAt"`
}

// PostDailyMetric is one row per (postId, date) pair.
type PostDailyMetric struct {
	PostID   string    `db:"post_id" json:"postId"`
	Date     time.Time `db:"date" json:"date"`
	Views    int64     `db:"views" json:"views"`
	Likes    int64     `db:"likes" json:"likes"`
	Comments int64     `db:"comments" json:"comments"`
}

// DayStart truncates t to midnight UTC, the fixed day boundary for all
// rollup windows.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
