package models

// Request bindings for the HTTP API. Defaults and validation tags are applied by ReadAndValidateRequest.

type GrowthRequest struct {
	Policy string `query:"policy" json:"policy" default:"first"`
}

type GrowthChartRequest struct {
	Policy string `query:"policy" json:"policy" default:"first"`
	Width  int    `query:"width" json:"width" default:"960" validate:"gte=200,lte=4096"`
	Height int    `query:"height" json:"height" default:"480" validate:"gte=120,lte=4096"`
}

type ReportRequest struct {
	Name string `param:"name" json:"name" validate:"required,oneof=dashboard.csv dashboard.pdf competitors.csv competitors.pdf summary.pdf"`
}

// HistoryRequest bounds are YYYY-MM-DD, RFC3339 or unix seconds; accounts is comma separated.
type HistoryRequest struct {
	From     string `query:"from" json:"from" validate:"max=40"`
	To       string `query:"to" json:"to" validate:"max=40"`
	Accounts string `query:"accounts" json:"accounts" validate:"max=2048"`
}

type RefreshInsightsRequest struct {
	Reason string `json:"reason" query:"reason" default:"manual" validate:"max=200"`
}
