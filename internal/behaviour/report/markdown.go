package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/banshee-data/trajectory.report/internal/behaviour/l5cohort"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
)

// Report file names written by Publish.
const (
	MarkdownName = "report.md"
	HTMLName     = "report.html"
)

// Summary is the content of a cohort report.
type Summary struct {
	Title       string
	RunID       string
	GeneratedAt time.Time
	Table       *l5cohort.SummaryTable
	// Plots are trajectory plot paths relative to the report directory.
	Plots []string
	// DistancePlots are linked rather than embedded.
	DistancePlots []string
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

func formatP(p float64) string {
	if math.IsNaN(p) {
		return "n/a"
	}
	if p < 1e-4 {
		return fmt.Sprintf("%.2e", p)
	}
	return fmt.Sprintf("%.4f", p)
}

// WriteMarkdown writes the cohort statistics and genotype comparisons of
// every metric as Markdown tables.
func WriteMarkdown(w io.Writer, s Summary) error {
	var b strings.Builder
	title := s.Title
	if title == "" {
		title = "Trajectory analysis"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if s.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`", s.RunID)
		if !s.GeneratedAt.IsZero() {
			fmt.Fprintf(&b, ", generated %s", s.GeneratedAt.UTC().Format(time.RFC3339))
		}
		b.WriteString(".\n\n")
	}
	if s.Table == nil {
		return fmt.Errorf("report %q: no summary table", title)
	}
	fmt.Fprintf(&b, "Recordings: %d.\n\n", len(s.Table.Rows))

	for _, metric := range l5cohort.Metrics {
		heading := metric
		if unit := l5cohort.MetricUnit(metric); unit != "" {
			heading = fmt.Sprintf("%s (%s)", metric, unit)
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)
		fmt.Fprintf(&b, "[chart](%s)\n\n", CohortChartName(metric))

		b.WriteString("| group | n | mean | SEM |\n|---|---:|---:|---:|\n")
		for _, g := range s.Table.Groups() {
			st := l5cohort.Describe(s.Table.Values(g, metric))
			mean, sem := math.NaN(), math.NaN()
			if st.N > 0 {
				mean, sem = st.Mean, st.SEM
			}
			fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", GroupLabel(g), st.N, formatValue(mean), formatValue(sem))
		}
		b.WriteString("\n")

		comparisons := s.Table.GenotypeComparisons(metric)
		if len(comparisons) == 0 {
			continue
		}
		b.WriteString("| comparison | Mann-Whitney p | rank-sum p | t-test p | |\n|---|---:|---:|---:|---|\n")
		for _, c := range comparisons {
			fmt.Fprintf(&b, "| %s vs %s | %s | %s | %s | %s |\n",
				GroupLabel(c.A), GroupLabel(c.B), formatP(c.MannWhitneyP), formatP(c.RankSumP), formatP(c.TTestP), c.Annotated)
		}
		b.WriteString("\n")
	}

	if len(s.Plots) > 0 {
		b.WriteString("## Trajectories\n\n")
		for _, p := range s.Plots {
			name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
			fmt.Fprintf(&b, "![%s](%s)\n\n", name, filepath.ToSlash(p))
		}
	}

	if len(s.DistancePlots) > 0 {
		b.WriteString("## Distance from optimal trajectory\n\n")
		for _, p := range s.DistancePlots {
			fmt.Fprintf(&b, "- [%s](%s)\n", filepath.Base(p), filepath.ToSlash(p))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderHTML converts Markdown to a standalone HTML page.
func RenderHTML(w io.Writer, title string, source []byte) error {
	var body bytes.Buffer
	if err := markdown.Convert(source, &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n%s</body></html>\n",
		html.EscapeString(title), body.String())
	return err
}

// Publish writes a cohort chart per metric, the Markdown report and its HTML
// rendering into dir. It returns the written paths.
func Publish(dir string, s Summary) ([]string, error) {
	if s.Table == nil {
		return nil, fmt.Errorf("publish %s: no summary table", dir)
	}
	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := fsutil.WriteFileAtomic(path, data); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	for _, metric := range l5cohort.Metrics {
		var buf bytes.Buffer
		if err := WriteCohortScatter(&buf, s.Table, metric); err != nil {
			return written, err
		}
		if err := write(CohortChartName(metric), buf.Bytes()); err != nil {
			return written, err
		}
	}

	var md bytes.Buffer
	if err := WriteMarkdown(&md, s); err != nil {
		return written, err
	}
	if err := write(MarkdownName, md.Bytes()); err != nil {
		return written, err
	}
	var page bytes.Buffer
	if err := RenderHTML(&page, s.Title, md.Bytes()); err != nil {
		return written, err
	}
	if err := write(HTMLName, page.Bytes()); err != nil {
		return written, err
	}
	return written, nil
}
