package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/banshee-data/trajectory.report/internal/behaviour/pipeline"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

// palette colours console output only when w is a terminal.
type palette struct {
	bold, green, yellow, red, cyan *color.Color
}

func newPalette(w io.Writer) palette {
	colorOutput := false
	if f, ok := w.(*os.File); ok {
		colorOutput = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	p := palette{
		bold:   color.New(color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed, color.Bold),
		cyan:   color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{p.bold, p.green, p.yellow, p.red, p.cyan} {
		if colorOutput {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) status(s string) string {
	switch s {
	case monitoring.OutcomeProcessed:
		return p.green.Sprint(s)
	case monitoring.OutcomeSkipped:
		return p.yellow.Sprint(s)
	default:
		return p.red.Sprint(s)
	}
}

// printResult writes one line per recording and a totals line.
func printResult(w io.Writer, res *pipeline.Result, outputDir string) {
	p := newPalette(w)
	for _, r := range res.Recordings {
		line := fmt.Sprintf("%-40s %s", r.Recording.ExpName(), p.status(r.Status))
		switch {
		case r.Err != nil:
			line += "  " + r.Err.Error()
		case r.Status == monitoring.OutcomeProcessed:
			line += fmt.Sprintf("  left=%d right=%d", len(r.Set.Left), len(r.Set.Right))
			if r.Stats != nil {
				line += fmt.Sprintf(" aborted=%d too_long=%d", r.Stats.Aborted, r.Stats.TooLong)
			}
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "%s %s: %s processed, %s skipped, %s failed in %s\n",
		p.bold.Sprint(res.Mode.String()),
		p.cyan.Sprint(filepath.Clean(outputDir)),
		p.green.Sprint(res.Processed),
		p.yellow.Sprint(res.Skipped),
		p.red.Sprint(res.Failed),
		res.Duration.Round(time.Millisecond))
	if res.RunID != "" {
		fmt.Fprintf(w, "run %s\n", res.RunID)
	}
}
