package models

// Insights sources reported by the upstream.
const (
	InsightsSourceRules = "rules"
	InsightsSourceAI    = "ai+rules"
)

type Insights struct {
	WhatCompetitorsDoBetter string   `json:"what_competitors_do_better"`
	ContentGaps             string   `json:"content_gaps"`
	BestTimeToPost          string   `json:"best_time_to_post"`
	Recommendations         []string `json:"recommendations"`
	Source                  string   `json:"source"`
}

type Workflow struct {
	Name    string `json:"name"`
	Trigger string `json:"trigger"`
	Action  string `json:"action"`
}
