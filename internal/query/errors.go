package query

import "errors"

var (
	ErrInvalidMetric = errors.New("invalid metric: use views, likes, or comments")

	ErrPostNotFound = errors.New("no analytics data found for this post")
)
