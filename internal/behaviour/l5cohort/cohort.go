package l5cohort

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Group identifies a cohort slice. An empty Session pools all sessions.
type Group struct {
	Genotype string `json:"genotype"`
	Session  string `json:"session,omitempty"`
}

// Stat is n, mean and standard error of one metric within a group. SEM uses
// the sample standard deviation and is zero when N < 2.
type Stat struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	SEM  float64 `json:"sem"`
}

// GroupStats is every metric's Stat for one group.
type GroupStats struct {
	Group   Group           `json:"group"`
	Metrics map[string]Stat `json:"metrics"`
}

// Describe computes a Stat over values, dropping NaN.
func Describe(values []float64) Stat {
	xs := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			xs = append(xs, v)
		}
	}
	s := Stat{N: len(xs)}
	switch len(xs) {
	case 0:
		return s
	case 1:
		s.Mean = xs[0]
		return s
	}
	mean, std := stat.MeanStdDev(xs, nil)
	s.Mean = mean
	s.SEM = std / math.Sqrt(float64(len(xs)))
	return s
}

// Values collects a metric over the rows of a group; unset values are
// skipped.
func (t *SummaryTable) Values(g Group, metric string) []float64 {
	var out []float64
	for _, r := range t.Rows {
		if r.Key.Genotype != g.Genotype || (g.Session != "" && r.Key.Session != g.Session) {
			continue
		}
		if v, ok := r.Value(metric); ok {
			out = append(out, v)
		}
	}
	return out
}

// Groups returns every genotype group followed by every (genotype, session)
// group present in the table, sorted.
func (t *SummaryTable) Groups() []Group {
	genotypes := make(map[string]bool)
	sessions := make(map[Group]bool)
	for _, r := range t.Rows {
		genotypes[r.Key.Genotype] = true
		sessions[Group{Genotype: r.Key.Genotype, Session: r.Key.Session}] = true
	}
	var out []Group
	for g := range genotypes {
		out = append(out, Group{Genotype: g})
	}
	for g := range sessions {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Genotype != out[j].Genotype {
			return out[i].Genotype < out[j].Genotype
		}
		return out[i].Session < out[j].Session
	})
	return out
}

// CohortStats computes per-group statistics for every metric.
func (t *SummaryTable) CohortStats() []GroupStats {
	groups := t.Groups()
	out := make([]GroupStats, 0, len(groups))
	for _, g := range groups {
		gs := GroupStats{Group: g, Metrics: make(map[string]Stat, len(Metrics))}
		for _, m := range Metrics {
			gs.Metrics[m] = Describe(t.Values(g, m))
		}
		out = append(out, gs)
	}
	return out
}
