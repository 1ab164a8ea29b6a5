package models

import (
	"time"

	"GapSight/internal/services/timeseries"
)

// Overview is the dashboard page. Optional parts that failed upstream are empty
// and their error is kept in Errors under the part name.
type Overview struct {
	Summary      Summary               `json:"summary"`
	Followers    []timeseries.Sample   `json:"followers"`
	Trend        []timeseries.TrendRow `json:"trend"`
	ContentTypes []ContentTypeStat     `json:"content_types"`
	Frequency    []ScatterPoint        `json:"frequency"`
	Errors       map[string]string     `json:"errors,omitempty"`
	FetchedAt    time.Time             `json:"fetched_at"`
}

// CompetitorsView is the competitors page.
type CompetitorsView struct {
	Compare []CompetitorStat    `json:"compare"`
	Gaps    []ContentGap        `json:"gaps"`
	Growth  *timeseries.Aligned `json:"growth"`
	Series  []string            `json:"series"`
	Latest  map[string]int64    `json:"latest"`
	// GrowthSource is "upstream" or "archive" when the upstream growth call failed.
	GrowthSource string    `json:"growth_source"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Report is a downloaded upstream export.
type Report struct {
	Name               string
	ContentType        string
	ContentDisposition string
	Size               int64
}

// GrowthChart is an aligned growth chart with its legend.
type GrowthChart struct {
	Rows   *timeseries.Aligned `json:"rows"`
	Series []string            `json:"series"`
	Latest map[string]int64    `json:"latest"`
	// Source is "upstream" or "archive".
	Source string `json:"source"`
}

func NewGrowthChart(a *timeseries.Aligned, source string) GrowthChart {
	return GrowthChart{Rows: a, Series: a.Names(), Latest: a.Latest(), Source: source}
}
