package charts

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"GapSight/internal/domain/service"
	"GapSight/internal/services/timeseries"
)

var ErrNoData = errors.New("charts: nothing to draw")

// Renderer draws aligned follower growth as a multi-line PNG.
type Renderer struct {
	title string
}

var _ service.ChartRenderer = (*Renderer)(nil)

func NewRenderer(title string) *Renderer {
	if title == "" {
		title = "Competitor growth"
	}
	return &Renderer{title: title}
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotColor:    col,
		DotWidth:    2,
	}
}

// GrowthPNG renders one line per series. Dates where a series has no sample are
// skipped rather than drawn as zero.
func (r *Renderer) GrowthPNG(a *timeseries.Aligned, width, height int) ([]byte, error) {
	if a.Len() == 0 {
		return nil, ErrNoData
	}
	dates := a.Dates()

	var (
		series     []chart.Series
		lo, hi     float64
		haveBounds bool
	)
	for i, name := range a.Names() {
		values, ok := a.Column(name)
		var xs []time.Time
		var ys []float64
		for j, present := range ok {
			if !present {
				continue
			}
			v := float64(values[j])
			xs = append(xs, dates[j].Time())
			ys = append(ys, v)
			if !haveBounds || v < lo {
				lo = v
			}
			if !haveBounds || v > hi {
				hi = v
			}
			haveBounds = true
		}
		if len(xs) == 0 {
			continue
		}
		// A single point has no x extent; go-chart refuses to draw it.
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(time.Hour))
			ys = append(ys, ys[0])
		}
		series = append(series, chart.TimeSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(chart.GetDefaultColor(i)),
		})
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	ch := chart.Chart{
		Title:      r.title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis: chart.YAxis{
			Name:           "followers",
			Range:          &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(v interface{}) string { return fmt.Sprintf("%.0f", v) },
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render growth chart: %w", err)
	}
	return buf.Bytes(), nil
}
