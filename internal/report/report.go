// Package report renders the optional diagnostics report: an HTML bar
// chart showing how many ocean cells pass each classifier criterion,
// which makes it obvious when a single threshold is doing all the work.
package report

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// CriterionCount is the per-criterion cell tally of one classifier run.
type CriterionCount struct {
	Name    string
	Passing int
}

// CoverageHTML renders the criteria-coverage bar chart as a standalone
// HTML page. total is the number of ocean cells considered.
func CoverageHTML(counts []CriterionCount, total int) ([]byte, error) {
	if len(counts) == 0 {
		return nil, fmt.Errorf("no criteria to report")
	}

	names := make([]string, len(counts))
	values := make([]opts.BarData, len(counts))
	for i, c := range counts {
		names[i] = c.Name
		values[i] = opts.BarData{Value: c.Passing}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Cold-spot criteria coverage", Width: "900px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Criteria coverage",
			Subtitle: fmt.Sprintf("ocean cells passing each criterion (of %d)", total),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "passing cells"}),
	)
	bar.SetXAxis(names)
	bar.AddSeries("passing", values,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return nil, fmt.Errorf("render coverage report: %w", err)
	}
	return buf.Bytes(), nil
}
