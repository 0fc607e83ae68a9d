package query

import "time"

type DailyActive struct {
	Date   string `json:"date"`
	Active int64  `json:"active"`
}

type Totals struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
}

type Overview struct {
	DAUTrend []DailyActive `json:"dauTrend"`
	Totals   Totals        `json:"totals"`
	TopPosts []*PostTotal  `json:"topPosts"`
}

type ActiveUsersSeries struct {
	Granularity string        `json:"granularity"`
	Window      int           `json:"window"`
	Series      []DailyActive `json:"series"`
}

// PostTotal is a per-post sum over a date range for a single metric.
type PostTotal struct {
	PostID string `db:"post_id" json:"postId"`
	Value  int64  `db:"value" json:"value"`
}

type TopPosts struct {
	Metric string       `json:"metric"`
	Period int          `json:"period"`
	Items  []*PostTotal `json:"items"`
}

type Retention struct {
	CohortDate string             `json:"cohortDate"`
	CohortSize int                `json:"cohortSize"`
	Retention  map[string]float64 `json:"retention"`
}

type PostDailyPoint struct {
	Date     string `json:"date"`
	Views    int64  `json:"views"`
	Likes    int64  `json:"likes"`
	Comments int64  `json:"comments"`
}

type EngagementRate struct {
	Likes    float64 `json:"likes"`
	Comments float64 `json:"comments"`
}

type PostDetails struct {
	PostID         string           `json:"postId"`
	DailySeries    []PostDailyPoint `json:"dailySeries"`
	Totals         Totals           `json:"totals"`
	EngagementRate EngagementRate   `json:"engagementRate"`
}

type SearchTerm struct {
	Term  string `db:"term" json:"term"`
	Count int64  `db:"count" json:"count"`
}

type TrendingSearches struct {
	Period int           `json:"period"`
	Items  []*SearchTerm `json:"items"`
}

func formatDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
