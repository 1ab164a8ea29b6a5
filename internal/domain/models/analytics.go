package models

// Summary is the headline metric set of the dashboard.
type Summary struct {
	FollowerCount     int64   `json:"follower_count"`
	FollowerGrowthPct float64 `json:"follower_growth_pct"`
	AvgEngagement     float64 `json:"avg_engagement"`
	TopContentType    string  `json:"top_content_type"`
	PostsPerWeek      int     `json:"posts_per_week"`
}

type ContentTypeStat struct {
	ContentType   string  `json:"content_type"`
	Count         int     `json:"count"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// FrequencyBucket is posting volume and engagement for one period (the upstream groups by month).
type FrequencyBucket struct {
	Week          string  `json:"week"`
	PostCount     int     `json:"post_count"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// ScatterPoint is a FrequencyBucket placed on a (posts, engagement) plane.
type ScatterPoint struct {
	Period     string  `json:"period"`
	Posts      int     `json:"posts"`
	Engagement float64 `json:"engagement"`
}
