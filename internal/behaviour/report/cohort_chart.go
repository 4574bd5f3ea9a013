package report

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trajectory.report/internal/behaviour/l5cohort"
)

// AssetsHost serves the echarts scripts embedded in rendered charts.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// GroupLabel is the category label of a cohort group.
func GroupLabel(g l5cohort.Group) string {
	if g.Session == "" {
		return g.Genotype
	}
	return g.Genotype + " / " + g.Session
}

// CohortScatter builds a scatter chart of one metric with a category per
// (genotype, session) group: one point per recording and the group mean with
// its SEM as a second series.
func CohortScatter(table *l5cohort.SummaryTable, metric string) (*charts.Scatter, error) {
	if !slices.Contains(l5cohort.Metrics, metric) {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	var labels []string
	var points, means []opts.ScatterData
	for _, g := range table.Groups() {
		if g.Session == "" {
			continue
		}
		label := GroupLabel(g)
		labels = append(labels, label)
		for _, r := range table.Rows {
			if r.Key.Genotype != g.Genotype || r.Key.Session != g.Session {
				continue
			}
			if v, ok := r.Value(metric); ok {
				points = append(points, opts.ScatterData{Name: r.Key.ExpName(), Value: []interface{}{label, v}})
			}
		}
		st := l5cohort.Describe(table.Values(g, metric))
		if st.N > 0 {
			means = append(means, opts.ScatterData{
				Name:  fmt.Sprintf("n=%d sem=%.4g", st.N, st.SEM),
				Value: []interface{}{label, st.Mean},
			})
		}
	}

	unit := l5cohort.MetricUnit(metric)
	yName := metric
	if unit != "" {
		yName = fmt.Sprintf("%s (%s)", metric, unit)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: metric, Width: "900px", Height: "600px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: metric, Subtitle: fmt.Sprintf("recordings=%d groups=%d", len(points), len(labels))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "group", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, NameLocation: "middle", NameGap: 45}),
	)
	scatter.SetXAxis(labels)
	scatter.AddSeries("recordings", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	scatter.AddSeries("mean", means, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 16}))
	return scatter, nil
}

// WriteCohortScatter renders the chart for metric as a standalone HTML page.
func WriteCohortScatter(w io.Writer, table *l5cohort.SummaryTable, metric string) error {
	scatter, err := CohortScatter(table, metric)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("render %s chart: %w", metric, err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// CohortChartName is the file name of a metric's cohort chart.
func CohortChartName(metric string) string {
	return "cohort_" + metric + ".html"
}
