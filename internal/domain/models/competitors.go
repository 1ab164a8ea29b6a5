package models

import "time"

type Competitor struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Username  string    `json:"username"`
	Platform  string    `json:"platform,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type CompetitorStat struct {
	Username      string  `json:"username"`
	FollowerCount int64   `json:"follower_count"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// ContentGap says how many more posts of a competitor's top content type the owner needs.
type ContentGap struct {
	Competitor      string `json:"competitor"`
	TheirTopContent string `json:"their_top_content"`
	YourUsage       int    `json:"your_usage"`
	Gap             int    `json:"gap"`
}

// FollowerSnapshot is one archived observation of an account's follower count.
type FollowerSnapshot struct {
	Account    string    `json:"account"`
	Date       string    `json:"date"`
	Followers  int64     `json:"followers"`
	ObservedAt time.Time `json:"observed_at"`
}
