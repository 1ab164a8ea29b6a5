package timeseries

const (
	TrendActual    = "actual"
	TrendPredicted = "predicted"
)

// TrendPoint is a follower count tagged as observed or forecast.
type TrendPoint struct {
	Date      string `json:"date"`
	Followers int64  `json:"followers"`
	Type      string `json:"type"`
}

// TrendRow splits a TrendPoint into two chart lines. Exactly one of Actual and
// Predicted is set for known types; both are nil otherwise, which leaves a gap.
type TrendRow struct {
	Date      string `json:"date"`
	Actual    *int64 `json:"actual"`
	Predicted *int64 `json:"predicted"`
}

// SplitTrend maps points to rows one to one, preserving order.
func SplitTrend(points []TrendPoint) []TrendRow {
	rows := make([]TrendRow, 0, len(points))
	for _, p := range points {
		row := TrendRow{Date: p.Date}
		v := p.Followers
		switch p.Type {
		case TrendActual:
			row.Actual = &v
		case TrendPredicted:
			row.Predicted = &v
		}
		rows = append(rows, row)
	}
	return rows
}

// ActualTrend tags observed samples for SplitTrend.
func ActualTrend(samples []Sample) []TrendPoint {
	out := make([]TrendPoint, len(samples))
	for i, s := range samples {
		out[i] = TrendPoint{Date: s.Date, Followers: s.Followers, Type: TrendActual}
	}
	return out
}
