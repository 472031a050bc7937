// Package charts renders dashboard charts as inline SVG.
package charts

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"math"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"sales-explorer/internal/models"
)

const NoDataMessage = "No data for the current filters"

var palette = []drawing.Color{
	drawing.ColorFromHex("1f77b4"),
	drawing.ColorFromHex("ff7f0e"),
	drawing.ColorFromHex("2ca02c"),
	drawing.ColorFromHex("d62728"),
	drawing.ColorFromHex("9467bd"),
	drawing.ColorFromHex("8c564b"),
	drawing.ColorFromHex("e377c2"),
	drawing.ColorFromHex("7f7f7f"),
	drawing.ColorFromHex("bcbd22"),
	drawing.ColorFromHex("17becf"),
}

func colorAt(i int) drawing.Color {
	return palette[i%len(palette)]
}

type Renderer struct {
	width  int
	height int
}

func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 360
	}
	return &Renderer{width: width, height: height}
}

// Placeholder is what every chart renders to when its input is empty.
func (r *Renderer) Placeholder() template.HTML {
	return template.HTML(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" class="no-data" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<rect width="100%%" height="100%%" fill="#f6f6f6"/>`+
			`<text x="50%%" y="50%%" text-anchor="middle" dominant-baseline="middle" fill="#777" font-size="14">%s</text></svg>`,
		r.width, r.height, r.width, r.height, html.EscapeString(NoDataMessage)))
}

func render(fn func(buf *bytes.Buffer) error) (template.HTML, error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func positiveValues(t models.AggregateTable) []chart.Value {
	values := make([]chart.Value, 0, len(t.Groups))
	for _, g := range t.Groups {
		v := g.Value.InexactFloat64()
		if v <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: labelOf(g.Keys),
			Value: v,
			Style: chart.Style{FillColor: colorAt(len(values)), StrokeColor: drawing.ColorWhite},
		})
	}
	return values
}

// labelOf joins the group keys for display. go-chart writes SVG text as
// is, so the keys are escaped here.
func labelOf(keys []string) string {
	return html.EscapeString(strings.Join(keys, " / "))
}

func moneyFormatter(v any) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprint(v)
	}
	switch a := math.Abs(f); {
	case a >= 1e6:
		return fmt.Sprintf("%.1fM", f/1e6)
	case a >= 1e3:
		return fmt.Sprintf("%.1fk", f/1e3)
	default:
		return fmt.Sprintf("%.0f", f)
	}
}

// Bar renders one bar per group, labelled with the group keys.
func (r *Renderer) Bar(title string, t models.AggregateTable) (template.HTML, error) {
	bars := positiveValues(t)
	if len(bars) == 0 {
		return r.Placeholder(), nil
	}

	spacing := 12
	barWidth := (r.width-100)/len(bars) - spacing
	barWidth = max(6, min(barWidth, 80))

	bc := chart.BarChart{
		Title:      title,
		Width:      r.width,
		Height:     r.height,
		BarWidth:   barWidth,
		BarSpacing: spacing,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 24}},
		XAxis:      chart.Style{FontSize: 9},
		YAxis: chart.YAxis{
			ValueFormatter: moneyFormatter,
		},
		Bars: bars,
	}
	return render(func(buf *bytes.Buffer) error {
		if err := bc.Render(chart.SVG, buf); err != nil {
			return fmt.Errorf("render bar chart: %w", err)
		}
		return nil
	})
}

// Pie renders each group's share of the positive total. Groups with a
// zero or negative value are left out.
func (r *Renderer) Pie(title string, t models.AggregateTable) (template.HTML, error) {
	values := positiveValues(t)
	if len(values) == 0 {
		return r.Placeholder(), nil
	}

	pc := chart.PieChart{
		Title:  title,
		Width:  r.width,
		Height: r.height,
		Values: values,
	}
	return render(func(buf *bytes.Buffer) error {
		if err := pc.Render(chart.SVG, buf); err != nil {
			return fmt.Errorf("render pie chart: %w", err)
		}
		return nil
	})
}

// Donut is Pie with a hole in the middle.
func (r *Renderer) Donut(title string, t models.AggregateTable) (template.HTML, error) {
	values := positiveValues(t)
	if len(values) == 0 {
		return r.Placeholder(), nil
	}

	dc := chart.DonutChart{
		Title:  title,
		Width:  r.width,
		Height: r.height,
		Values: values,
	}
	return render(func(buf *bytes.Buffer) error {
		if err := dc.Render(chart.SVG, buf); err != nil {
			return fmt.Errorf("render donut chart: %w", err)
		}
		return nil
	})
}

// Line renders the monthly series in chronological order.
func (r *Renderer) Line(title string, s models.MonthlySeries) (template.HTML, error) {
	if len(s) == 0 {
		return r.Placeholder(), nil
	}

	xs := make([]time.Time, 0, len(s))
	ys := make([]float64, 0, len(s))
	for _, p := range s {
		xs = append(xs, p.Month)
		ys = append(ys, p.Sales.InexactFloat64())
	}
	// a single point has a zero-width x range, which go-chart rejects
	if len(xs) == 1 {
		xs = append(xs, xs[0].AddDate(0, 1, 0))
		ys = append(ys, ys[0])
	}

	c := chart.Chart{
		Title:      title,
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 24, Bottom: 16}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006 : Jan"),
		},
		YAxis: chart.YAxis{
			Name:           string(models.MeasureSales),
			ValueFormatter: moneyFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    string(models.MeasureSales),
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: colorAt(0),
					StrokeWidth: 2,
					DotColor:    colorAt(0),
					DotWidth:    3,
				},
			},
		},
	}
	return render(func(buf *bytes.Buffer) error {
		if err := c.Render(chart.SVG, buf); err != nil {
			return fmt.Errorf("render line chart: %w", err)
		}
		return nil
	})
}

// Scatter plots profit against sales, with the dot size following quantity.
func (r *Renderer) Scatter(title string, points []models.ScatterPoint) (template.HTML, error) {
	if len(points) == 0 {
		return r.Placeholder(), nil
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	qs := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Sales.InexactFloat64()
		ys[i] = p.Profit.InexactFloat64()
		qs[i] = float64(p.Quantity)
	}

	c := chart.Chart{
		Title:      title,
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 24, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           string(models.MeasureSales),
			Range:          paddedRange(xs),
			ValueFormatter: moneyFormatter,
		},
		YAxis: chart.YAxis{
			Name:           string(models.MeasureProfit),
			Range:          paddedRange(ys),
			ValueFormatter: moneyFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Sales vs Profit",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotColor:    colorAt(0).WithAlpha(160),
					DotWidthProvider: func(_, _ chart.Range, i int, _, _ float64) float64 {
						return 2 + 1.5*math.Sqrt(qs[i])
					},
				},
			},
		},
	}
	return render(func(buf *bytes.Buffer) error {
		if err := c.Render(chart.SVG, buf); err != nil {
			return fmt.Errorf("render scatter chart: %w", err)
		}
		return nil
	})
}

// paddedRange spans values with a 5% margin so that a single point or a
// column of identical values still gets a non-empty range.
func paddedRange(values []float64) *chart.ContinuousRange {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(1, math.Abs(hi)*0.05)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
