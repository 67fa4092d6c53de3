package monitor

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ReportData is the run summary rendered into the HTML report. Kept free of
// pipeline types so the report stays a pure presentation layer.
type ReportData struct {
	RunID     string
	InputRoot string
	Engine    string
	State     string

	Stages []StageDuration
	Rigs   []RigLine
}

// StageDuration is one pipeline stage's wall time.
type StageDuration struct {
	Stage    string
	Duration time.Duration
}

// RigLine is one rig's participation in the run.
type RigLine struct {
	RigID   string
	Cameras int
	Images  int
	Used    bool
	Reason  string
}

// WriteRunReport renders a static HTML report for one run: a bar chart of
// stage wall times and a bar chart of per-rig image counts (skipped rigs
// shown at zero with the skip reason in the subtitle).
func WriteRunReport(w io.Writer, data ReportData) error {
	stageNames := make([]string, 0, len(data.Stages))
	stageBars := make([]opts.BarData, 0, len(data.Stages))
	for _, s := range data.Stages {
		stageNames = append(stageNames, s.Stage)
		stageBars = append(stageBars, opts.BarData{Value: s.Duration.Seconds()})
	}

	stageChart := charts.NewBar()
	stageChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("run %s (%s)", data.RunID, data.State),
			Subtitle: fmt.Sprintf("engine=%s input=%s", data.Engine, data.InputRoot),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "seconds"}),
	)
	stageChart.SetXAxis(stageNames)
	stageChart.AddSeries("stage wall time", stageBars,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	rigNames := make([]string, 0, len(data.Rigs))
	rigBars := make([]opts.BarData, 0, len(data.Rigs))
	skipped := 0
	for _, r := range data.Rigs {
		rigNames = append(rigNames, r.RigID)
		if !r.Used {
			skipped++
			rigBars = append(rigBars, opts.BarData{Value: 0, Name: r.Reason})
			continue
		}
		rigBars = append(rigBars, opts.BarData{Value: r.Images})
	}

	rigChart := charts.NewBar()
	rigChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "rigs",
			Subtitle: fmt.Sprintf("%d used, %d skipped", len(data.Rigs)-skipped, skipped),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "images"}),
	)
	rigChart.SetXAxis(rigNames)
	rigChart.AddSeries("images per rig", rigBars,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.AddCharts(stageChart, rigChart)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("rendering run report: %w", err)
	}
	return nil
}
