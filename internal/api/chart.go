package api

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

// BuildChart plots predicted covers with the interval bounds. Failed dates
// leave gaps.
func BuildChart(title string, outcomes []models.BatchOutcome) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Covers forecast",
			Width:     "900px",
			Height:    "480px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	xAxis := make([]string, 0, len(outcomes))
	predicted := make([]opts.LineData, 0, len(outcomes))
	low := make([]opts.LineData, 0, len(outcomes))
	high := make([]opts.LineData, 0, len(outcomes))
	for _, out := range outcomes {
		xAxis = append(xAxis, utils.FormatDate(out.Date))
		if out.Status != models.BatchCompleted {
			predicted = append(predicted, opts.LineData{Value: "-"})
			low = append(low, opts.LineData{Value: "-"})
			high = append(high, opts.LineData{Value: "-"})
			continue
		}
		result := out.Prediction.Outcome.Result
		predicted = append(predicted, opts.LineData{Value: result.PredictedCovers})
		low = append(low, opts.LineData{Value: result.IntervalLow})
		high = append(high, opts.LineData{Value: result.IntervalHigh})
	}

	line.SetXAxis(xAxis).
		AddSeries("Predicted", predicted).
		AddSeries("Low", low, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"})).
		AddSeries("High", high, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	return line
}

// RenderChart writes the forecast chart as an HTML page.
func RenderChart(w io.Writer, title string, outcomes []models.BatchOutcome) error {
	return BuildChart(title, outcomes).Render(w)
}
