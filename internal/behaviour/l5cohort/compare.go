package l5cohort

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Comparison contrasts one metric between two groups.
type Comparison struct {
	Metric       string
	A            Group
	B            Group
	StatA        Stat
	StatB        Stat
	MannWhitneyU float64
	MannWhitneyP float64
	RankSumZ     float64
	RankSumP     float64
	TTestT       float64
	TTestP       float64
	Annotated    string
}

// Compare runs the Mann-Whitney U, rank-sum and two-sample t tests for
// metric between groups a and b. Stars annotate the Mann-Whitney p-value.
// Test statistics are NaN when either group has fewer than two values.
func (t *SummaryTable) Compare(metric string, a, b Group) Comparison {
	xa, xb := t.Values(a, metric), t.Values(b, metric)
	c := Comparison{Metric: metric, A: a, B: b, StatA: Describe(xa), StatB: Describe(xb)}
	c.MannWhitneyU, c.MannWhitneyP = MannWhitneyU(xa, xb)
	c.RankSumZ, c.RankSumP = RankSum(xa, xb)
	c.TTestT, c.TTestP = TTest(xa, xb)
	c.Annotated = Stars(c.MannWhitneyP)
	return c
}

// ranks returns the rank sum of x within the pooled sample, using average
// ranks for ties, and the tie term sum(t^3 - t) over tied groups.
func ranks(x, y []float64) (sumX, ties float64) {
	type obs struct {
		v     float64
		fromX bool
	}
	all := make([]obs, 0, len(x)+len(y))
	for _, v := range x {
		all = append(all, obs{v, true})
	}
	for _, v := range y {
		all = append(all, obs{v, false})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].v < all[j].v })

	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].v == all[i].v {
			j++
		}
		rank := float64(i+j+1) / 2 // mean of ranks i+1..j
		for k := i; k < j; k++ {
			if all[k].fromX {
				sumX += rank
			}
		}
		if t := float64(j - i); t > 1 {
			ties += t*t*t - t
		}
		i = j
	}
	return sumX, ties
}

// RankSum is the Wilcoxon rank-sum test with the normal approximation and
// average ranks for ties. It returns z and the two-sided p-value.
func RankSum(x, y []float64) (z, p float64) {
	if len(x) < 2 || len(y) < 2 {
		return math.NaN(), math.NaN()
	}
	n1, n2 := float64(len(x)), float64(len(y))
	s, _ := ranks(x, y)
	expected := n1 * (n1 + n2 + 1) / 2
	z = (s - expected) / math.Sqrt(n1*n2*(n1+n2+1)/12)
	p = 2 * distuv.UnitNormal.Survival(math.Abs(z))
	return z, p
}

// exactULimit bounds the sample sizes tested with the exact U distribution.
const exactULimit = 8

// MannWhitneyU is the two-sided Mann-Whitney U test. When both samples are
// smaller than eight and have no ties the exact distribution of U is used,
// otherwise the normal approximation with tie and continuity corrections.
// It returns the larger of the two U statistics and the p-value.
func MannWhitneyU(x, y []float64) (u, p float64) {
	if len(x) < 2 || len(y) < 2 {
		return math.NaN(), math.NaN()
	}
	n1, n2 := float64(len(x)), float64(len(y))
	r1, ties := ranks(x, y)
	u1 := r1 - n1*(n1+1)/2
	u = math.Max(u1, n1*n2-u1)

	if len(x) < exactULimit && len(y) < exactULimit && ties == 0 {
		p = 2 * exactUSurvival(len(x), len(y), int(math.Round(u)))
	} else {
		n := n1 + n2
		sigma := math.Sqrt(n1 * n2 / 12 * ((n + 1) - ties/(n*(n-1))))
		if sigma == 0 {
			return u, math.NaN()
		}
		z := (u - n1*n2/2 - 0.5) / sigma
		p = 2 * distuv.UnitNormal.Survival(z)
	}
	return u, math.Min(p, 1)
}

// exactUSurvival is P(U >= u) for samples of m and n distinct values.
func exactUSurvival(m, n, u int) float64 {
	var tail, total float64
	for k, c := range uCounts(m, n) {
		total += c
		if k >= u {
			tail += c
		}
	}
	return tail / total
}

// uCounts returns, for each U, how many orderings of m and n distinct
// values produce it. The largest value either belongs to the first sample
// and beats all n of the second, or belongs to the second and beats none.
func uCounts(m, n int) []float64 {
	table := make([][][]float64, m+1)
	for i := 0; i <= m; i++ {
		table[i] = make([][]float64, n+1)
		for j := 0; j <= n; j++ {
			c := make([]float64, i*j+1)
			if i == 0 || j == 0 {
				c[0] = 1
			} else {
				for k := range c {
					if k >= j {
						c[k] += table[i-1][j][k-j]
					}
					if k < len(table[i][j-1]) {
						c[k] += table[i][j-1][k]
					}
				}
			}
			table[i][j] = c
		}
	}
	return table[m][n]
}

// TTest is the two-sample Student t test with pooled variance. It returns t
// and the two-sided p-value.
func TTest(x, y []float64) (tStat, p float64) {
	n1, n2 := float64(len(x)), float64(len(y))
	if len(x) < 2 || len(y) < 2 {
		return math.NaN(), math.NaN()
	}
	m1, v1 := stat.MeanVariance(x, nil)
	m2, v2 := stat.MeanVariance(y, nil)
	df := n1 + n2 - 2
	pooled := ((n1-1)*v1 + (n2-1)*v2) / df
	se := math.Sqrt(pooled * (1/n1 + 1/n2))
	if se == 0 {
		return math.NaN(), math.NaN()
	}
	tStat = (m1 - m2) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * dist.Survival(math.Abs(tStat))
	return tStat, p
}

// Stars annotates a p-value: one star below 0.05 and one more for every
// further factor of ten, "n. s." otherwise.
func Stars(p float64) string {
	if math.IsNaN(p) {
		return "n. s."
	}
	var sb strings.Builder
	for threshold := 0.05; p < threshold && sb.Len() < 4; threshold /= 10 {
		sb.WriteByte('*')
	}
	if sb.Len() == 0 {
		return "n. s."
	}
	return sb.String()
}

// GenotypeComparisons compares metric between every pair of genotypes, first
// pooled over sessions and then within each session both genotypes share.
func (t *SummaryTable) GenotypeComparisons(metric string) []Comparison {
	var genotypes []string
	sessions := make(map[string]map[string]bool)
	for _, g := range t.Groups() {
		if g.Session == "" {
			genotypes = append(genotypes, g.Genotype)
			continue
		}
		if sessions[g.Session] == nil {
			sessions[g.Session] = make(map[string]bool)
		}
		sessions[g.Session][g.Genotype] = true
	}
	sessionNames := make([]string, 0, len(sessions))
	for s := range sessions {
		sessionNames = append(sessionNames, s)
	}
	sort.Strings(sessionNames)

	var out []Comparison
	for i := 0; i < len(genotypes); i++ {
		for j := i + 1; j < len(genotypes); j++ {
			out = append(out, t.Compare(metric, Group{Genotype: genotypes[i]}, Group{Genotype: genotypes[j]}))
		}
	}
	for _, s := range sessionNames {
		for i := 0; i < len(genotypes); i++ {
			for j := i + 1; j < len(genotypes); j++ {
				if !sessions[s][genotypes[i]] || !sessions[s][genotypes[j]] {
					continue
				}
				a := Group{Genotype: genotypes[i], Session: s}
				b := Group{Genotype: genotypes[j], Session: s}
				out = append(out, t.Compare(metric, a, b))
			}
		}
	}
	return out
}
