package histogram

import (
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	barWidth   = 6
	barSpacing = 2
	chartPad   = 120
)

// heatRamp mirrors the bucket colors of the UI's gist canvas: dark red for
// the lowest values through red to yellow for the highest.
func heatRamp(i, n int) drawing.Color {
	t := 0.0
	if n > 1 {
		t = float64(i) / float64(n-1)
	}
	switch {
	case t < 0.3:
		return drawing.Color{R: uint8(255 - 90*(0.3-t)/0.3), G: 0, B: 0, A: 255}
	case t < 0.6:
		return drawing.Color{R: 225, G: uint8(225 * (t - 0.3) / 0.3), B: 0, A: 255}
	default:
		return drawing.Color{R: 225, G: 225, B: uint8(160 * (t - 0.6) / 0.4), A: 255}
	}
}

// RenderChart draws the gist as a PNG bar chart. Every tenth bucket carries
// its lower edge as a label.
func RenderChart(w io.Writer, g Gist, title string) error {
	n := len(g.Counts)
	if n == 0 {
		return fmt.Errorf("%w: empty gist", ErrInvalidBuckets)
	}

	step := 0.0
	if n > 1 {
		step = (g.Max - g.Min) / float64(n-1)
	}

	var top uint64
	bars := make([]chart.Value, n)
	for i, c := range g.Counts {
		if c > top {
			top = c
		}
		label := ""
		if i%10 == 0 {
			label = Truncate(g.Min + step*float64(i))
		}
		col := heatRamp(i, n)
		bars[i] = chart.Value{
			Label: label,
			Value: float64(c),
			Style: chart.Style{FillColor: col, StrokeColor: col},
		}
	}

	bc := chart.BarChart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      n*(barWidth+barSpacing) + chartPad,
		Height:     320,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(top) + 1},
		},
		Bars: bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("error rendering gist chart: %w", err)
	}
	return nil
}
