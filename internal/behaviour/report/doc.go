// Package report renders analysis results: per-recording trajectory plots
// (gonum/plot), cohort scatter charts (go-echarts) and a Markdown summary
// converted to HTML (goldmark).
//
// Dependency rule: report reads L5 summaries and L4 averages; nothing in the
// layer packages imports it.
package report
