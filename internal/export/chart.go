package export

import (
	"bytes"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	viableColor    = drawing.Color{R: 52, G: 168, B: 83, A: 255}
	nonViableColor = drawing.Color{R: 234, G: 67, B: 53, A: 255}
	totalColor     = drawing.Color{R: 66, G: 133, B: 244, A: 255}
)

// chartBars returns one bar per counted square, or a viable/non-viable
// pair when the count was entered as totals.
func chartBars(r CountReport) []chart.Value {
	if len(r.PerGrid) == 0 {
		return []chart.Value{
			{Label: "Viable", Value: float64(r.ViableCells), Style: chart.Style{FillColor: viableColor, StrokeColor: viableColor}},
			{Label: "Non-viable", Value: float64(r.NonViableCells), Style: chart.Style{FillColor: nonViableColor, StrokeColor: nonViableColor}},
		}
	}
	bars := make([]chart.Value, 0, len(r.PerGrid))
	for _, g := range r.PerGrid {
		bars = append(bars, chart.Value{
			Label: g.Grid.Label(),
			Value: float64(g.Total()),
			Style: chart.Style{FillColor: totalColor, StrokeColor: totalColor},
		})
	}
	return bars
}

// CountChartPNG renders the cells counted per square as a bar chart.
func CountChartPNG(r CountReport) ([]byte, error) {
	bars := chartBars(r)
	top := 1.0
	for _, b := range bars {
		top = max(top, b.Value)
	}
	graph := chart.BarChart{
		Title:      "Cells per Square",
		TitleStyle: chart.Style{FontSize: 12.0},
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10}},
		Width:      640,
		Height:     400,
		BarWidth:   60,
		BarSpacing: 40,
		XAxis:      chart.Style{FontSize: 10.0},
		YAxis: chart.YAxis{
			Name:  "Cells",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: bars,
	}
	buf := &bytes.Buffer{}
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
