package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	hexColor = regexp.MustCompile(`^#?(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

	incomeColor  = drawing.ColorFromHex("22c55e")
	expenseColor = drawing.ColorFromHex("ef4444")
)

// RenderMonthlyChart draws the monthly view as a PNG bar chart with an income
// and an expense bar per month.
func RenderMonthlyChart(w io.Writer, buckets []MonthBucket) error {
	if len(buckets) == 0 {
		return ErrNoData
	}

	bars := make([]chart.Value, 0, len(buckets)*2)
	for _, b := range buckets {
		bars = append(bars,
			chart.Value{
				Label: b.Month.String()[:3],
				Value: b.Income.InexactFloat64(),
				Style: chart.Style{FillColor: incomeColor, StrokeColor: incomeColor},
			},
			chart.Value{
				Value: b.Expense.InexactFloat64(),
				Style: chart.Style{FillColor: expenseColor, StrokeColor: expenseColor},
			},
		)
	}

	// An explicit range keeps an all-zero window renderable.
	top := math.Max(1, math.Ceil(MaxMonthValue(buckets).InexactFloat64()*1.1))

	graph := chart.BarChart{
		Title:    "Income vs expenses",
		Width:    960,
		Height:   420,
		BarWidth: 28,
		Background: chart.Style{
			Padding:   chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16},
			FillColor: chart.ColorWhite,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// ErrNoData is returned when a chart would have nothing to draw.
var ErrNoData = errors.New("no data to chart")

// RenderCategoryChart draws the category view as a PNG pie chart using each
// category's own color.
func RenderCategoryChart(w io.Writer, buckets []CategoryBucket) error {
	values := make([]chart.Value, 0, len(buckets))
	for _, b := range buckets {
		if !b.Amount.IsPositive() {
			continue
		}
		style := chart.Style{}
		if hexColor.MatchString(b.Color) {
			c := drawing.ColorFromHex(b.Color)
			style = chart.Style{FillColor: c, StrokeColor: chart.ColorWhite}
		}
		values = append(values, chart.Value{Label: b.Name, Value: b.Amount.InexactFloat64(), Style: style})
	}
	if len(values) == 0 {
		return ErrNoData
	}

	pie := chart.PieChart{
		Width:  480,
		Height: 480,
		Values: values,
	}
	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render category chart: %w", err)
	}
	return nil
}
