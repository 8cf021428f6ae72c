package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

// StatisticalTests holds the three planned comparisons. Each is tagged so a
// comparison that cannot run never hides the others.
type StatisticalTests struct {
	TwoArm                     Outcome[TTestResult]       `json:"two_arm" yaml:"two_arm"`
	AdherenceWeightCorrelation Outcome[CorrelationResult] `json:"adherence_weight_correlation" yaml:"adherence_weight_correlation"`
	CountryWeightLossANOVA     Outcome[ANOVAResult]       `json:"country_weight_loss_anova" yaml:"country_weight_loss_anova"`
}

type TTestResult struct {
	TestType         string  `json:"test_type" yaml:"test_type"`
	Preferred        string  `json:"preferred" yaml:"preferred"`
	Comparator       string  `json:"comparator" yaml:"comparator"`
	NPreferred       int     `json:"n_preferred" yaml:"n_preferred"`
	NComparator      int     `json:"n_comparator" yaml:"n_comparator"`
	DegreesOfFreedom float64 `json:"degrees_of_freedom" yaml:"degrees_of_freedom"`
	TStatistic       float64 `json:"t_statistic" yaml:"t_statistic"`
	PValue           float64 `json:"p_value" yaml:"p_value"`
	Significant      bool    `json:"significant" yaml:"significant"`
	Interpretation   string  `json:"interpretation" yaml:"interpretation"`
}

type CorrelationResult struct {
	TestType               string  `json:"test_type" yaml:"test_type"`
	N                      int     `json:"n" yaml:"n"`
	CorrelationCoefficient float64 `json:"correlation_coefficient" yaml:"correlation_coefficient"`
	PValue                 float64 `json:"p_value" yaml:"p_value"`
	Significant            bool    `json:"significant" yaml:"significant"`
	Strength               string  `json:"strength" yaml:"strength"`
	Interpretation         string  `json:"interpretation" yaml:"interpretation"`
}

type ANOVAResult struct {
	TestType       string  `json:"test_type" yaml:"test_type"`
	Groups         int     `json:"groups" yaml:"groups"`
	N              int     `json:"n" yaml:"n"`
	FStatistic     float64 `json:"f_statistic" yaml:"f_statistic"`
	PValue         float64 `json:"p_value" yaml:"p_value"`
	Significant    bool    `json:"significant" yaml:"significant"`
	Interpretation string  `json:"interpretation" yaml:"interpretation"`
}

// StatisticalTests runs every planned comparison and tags each result.
func (e *Engine) StatisticalTests() StatisticalTests {
	return StatisticalTests{
		TwoArm:                     outcomeOf(e.TwoArmTest()),
		AdherenceWeightCorrelation: outcomeOf(e.AdherenceCorrelation()),
		CountryWeightLossANOVA:     outcomeOf(e.CountryANOVA()),
	}
}

// TwoArmTest compares weight change between the preferred and comparator
// arms with Student's t-test, or Welch's when equal variance is not assumed.
func (e *Engine) TwoArmTest() (TTestResult, error) {
	const name = "two_arm"
	pref, comp := e.opt.PreferredArm, e.opt.ComparatorArm
	var missing []string
	for _, arm := range []string{pref, comp} {
		if !e.table.Domains.HasIntervention(arm) {
			missing = append(missing, arm)
		}
	}
	if len(missing) > 0 {
		return TTestResult{}, &ComparisonError{Comparison: name, Missing: missing}
	}
	intervention := func(r dataset.Record) string { return r.Intervention }
	a := finite(column(subset(e.records(), intervention, pref), weightChange))
	b := finite(column(subset(e.records(), intervention, comp), weightChange))
	if len(a) < 2 || len(b) < 2 {
		return TTestResult{}, &ComparisonError{
			Comparison: name,
			Reason:     fmt.Sprintf("need at least 2 observations per arm, have %d and %d", len(a), len(b)),
		}
	}

	t, df, err := tTest(a, b, e.opt.EqualVariance)
	if err != nil {
		return TTestResult{}, err
	}
	p := 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))

	res := TTestResult{
		TestType:         "Independent t-test",
		Preferred:        pref,
		Comparator:       comp,
		NPreferred:       len(a),
		NComparator:      len(b),
		DegreesOfFreedom: round(df, 3),
		TStatistic:       round(t, 3),
		PValue:           round(p, 6),
		Significant:      p < e.opt.Alpha,
	}
	if !e.opt.EqualVariance {
		res.TestType = "Welch's t-test"
	}
	if res.Significant {
		res.Interpretation = fmt.Sprintf("%s shows significantly different weight loss compared to %s", pref, comp)
	} else {
		res.Interpretation = "No significant difference between interventions"
	}
	return res, nil
}

func tTest(a, b []float64, equalVar bool) (t, df float64, err error) {
	n1, n2 := float64(len(a)), float64(len(b))
	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	var se float64
	if equalVar {
		df = n1 + n2 - 2
		pooled := ((n1-1)*v1 + (n2-1)*v2) / df
		se = math.Sqrt(pooled * (1/n1 + 1/n2))
	} else {
		s1, s2 := v1/n1, v2/n2
		se = math.Sqrt(s1 + s2)
		df = (s1 + s2) * (s1 + s2) / (s1*s1/(n1-1) + s2*s2/(n2-1))
	}
	if se == 0 || math.IsNaN(se) {
		return 0, 0, undefined("two_arm: zero variance in both arms")
	}
	return (m1 - m2) / se, df, nil
}

// AdherenceCorrelation is the Pearson correlation between adherence rate and
// weight change over rows where both are present.
func (e *Engine) AdherenceCorrelation() (CorrelationResult, error) {
	const name = "adherence_weight_correlation"
	var x, y []float64
	for _, r := range e.records() {
		if math.IsNaN(r.AdherenceRate) || math.IsNaN(r.WeightChangeKg) {
			continue
		}
		x = append(x, r.AdherenceRate)
		y = append(y, r.WeightChangeKg)
	}
	n := len(x)
	if n < 3 {
		return CorrelationResult{}, &ComparisonError{
			Comparison: name,
			Reason:     fmt.Sprintf("need at least 3 paired observations, have %d", n),
		}
	}
	if stat.StdDev(x, nil) == 0 || stat.StdDev(y, nil) == 0 {
		return CorrelationResult{}, undefined("%s: zero variance in adherence or weight change", name)
	}

	r := math.Max(-1, math.Min(1, stat.Correlation(x, y, nil)))
	p := 0.0
	if math.Abs(r) < 1 {
		t := r * math.Sqrt(float64(n-2)/(1-r*r))
		p = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}.Survival(math.Abs(t))
	}
	strength := correlationStrength(r)
	return CorrelationResult{
		TestType:               "Pearson correlation",
		N:                      n,
		CorrelationCoefficient: round(r, 3),
		PValue:                 round(p, 6),
		Significant:            p < e.opt.Alpha,
		Strength:               strength,
		Interpretation:         fmt.Sprintf("%s correlation between adherence and weight loss", strength),
	}, nil
}

func correlationStrength(r float64) string {
	switch a := math.Abs(r); {
	case a > 0.7:
		return "Strong"
	case a > 0.3:
		return "Moderate"
	default:
		return "Weak"
	}
}

// CountryANOVA is a one-way F-test of weight change across countries.
func (e *Engine) CountryANOVA() (ANOVAResult, error) {
	const name = "country_weight_loss_anova"
	var groups [][]float64
	total := 0
	for _, g := range groupBy(e.records(), func(r dataset.Record) string { return r.Country }) {
		vals := finite(column(g.Value, weightChange))
		if len(vals) == 0 {
			continue
		}
		groups = append(groups, vals)
		total += len(vals)
	}
	k := len(groups)
	if k < 2 {
		return ANOVAResult{}, &ComparisonError{
			Comparison: name,
			Reason:     fmt.Sprintf("need at least 2 countries, have %d", k),
		}
	}
	if total <= k {
		return ANOVAResult{}, &ComparisonError{
			Comparison: name,
			Reason:     fmt.Sprintf("need more observations (%d) than countries (%d)", total, k),
		}
	}

	var all []float64
	for _, g := range groups {
		all = append(all, g...)
	}
	grand := stat.Mean(all, nil)
	var ssb, ssw float64
	for _, g := range groups {
		m := stat.Mean(g, nil)
		ssb += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			ssw += (v - m) * (v - m)
		}
	}
	if ssw == 0 {
		return ANOVAResult{}, undefined("%s: zero within-group variance", name)
	}
	d1, d2 := float64(k-1), float64(total-k)
	f := (ssb / d1) / (ssw / d2)
	p := distuv.F{D1: d1, D2: d2}.Survival(f)

	res := ANOVAResult{
		TestType:    "One-way ANOVA",
		Groups:      k,
		N:           total,
		FStatistic:  round(f, 3),
		PValue:      round(p, 6),
		Significant: p < e.opt.Alpha,
	}
	if res.Significant {
		res.Interpretation = "Significant differences in weight loss across countries"
	} else {
		res.Interpretation = "No significant differences across countries"
	}
	return res, nil
}
