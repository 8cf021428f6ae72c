package analysis

import (
	"fmt"
	"math"
)

// InsightInputs is everything the insight rules may read. Rules never touch
// the records.
type InsightInputs struct {
	Basic         BasicStats
	Effectiveness Groups[ArmStats]
	Demographics  Demographics
	Comorbidities Comorbidities

	PreferredArm       string
	ComparatorArm      string
	AdherenceThreshold float64
}

type insightRule func(InsightInputs) (string, bool)

// insightRules run in this order; each emits at most one sentence.
var insightRules = []insightRule{
	armDeltaInsight,
	adherenceInsight,
	bestAgeGroupInsight,
	comorbidityBurdenInsight,
	bestCountryInsight,
	adverseEventInsight,
}

// GenerateInsights evaluates every rule in order. Identical inputs produce
// identical output.
func GenerateInsights(in InsightInputs) []string {
	out := []string{}
	for _, rule := range insightRules {
		if s, ok := rule(in); ok {
			out = append(out, s)
		}
	}
	return out
}

// armDeltaInsight stays silent unless both arms are present; a missing
// comparator is not treated as a 0% rate.
func armDeltaInsight(in InsightInputs) (string, bool) {
	pref, ok1 := in.Effectiveness.Get(in.PreferredArm)
	comp, ok2 := in.Effectiveness.Get(in.ComparatorArm)
	if !ok1 || !ok2 || pref.SignificantWeightLossRate <= comp.SignificantWeightLossRate {
		return "", false
	}
	return fmt.Sprintf("%s shows %.1f%% higher significant weight loss rate compared to %s.",
		in.PreferredArm, pref.SignificantWeightLossRate-comp.SignificantWeightLossRate, in.ComparatorArm), true
}

func adherenceInsight(in InsightInputs) (string, bool) {
	high, ok1 := in.Demographics.ByAdherence.Get(TierHigh)
	low, ok2 := in.Demographics.ByAdherence.Get(TierLow)
	if !ok1 || !ok2 {
		return "", false
	}
	return fmt.Sprintf("Patients with high adherence (>%s%%) show %.1f%% higher success rate.",
		formatPercent(in.AdherenceThreshold*100), high.exactSuccessRate()-low.exactSuccessRate()), true
}

func bestAgeGroupInsight(in InsightInputs) (string, bool) {
	if len(in.Demographics.ByAgeGroup) == 0 {
		return "", false
	}
	best := in.Demographics.ByAgeGroup[0]
	for _, g := range in.Demographics.ByAgeGroup[1:] {
		if g.Value.SuccessRate > best.Value.SuccessRate {
			best = g
		}
	}
	return fmt.Sprintf("Age group %s shows the highest success rate at %.1f%%.", best.Key, best.Value.SuccessRate), true
}

func comorbidityBurdenInsight(in InsightInputs) (string, bool) {
	byCount := in.Comorbidities.ByCount
	if len(byCount) < 2 {
		return "", false
	}
	none, ok := byCount.Get(countKey(0))
	if !ok {
		return "", false
	}
	multi, ok := byCount.Get(countKey(2))
	if !ok {
		if multi, ok = byCount.Get(countKey(3)); !ok {
			return "", false
		}
	}
	return fmt.Sprintf("Patients with no comorbidities have %.1f%% higher success rate than those with multiple conditions.",
		none.SuccessRate-multi.SuccessRate), true
}

func bestCountryInsight(in InsightInputs) (string, bool) {
	if len(in.Demographics.ByCountry) == 0 {
		return "", false
	}
	best := in.Demographics.ByCountry[0]
	for _, g := range in.Demographics.ByCountry[1:] {
		if g.Value.SuccessRate > best.Value.SuccessRate {
			best = g
		}
	}
	return fmt.Sprintf("%s shows the highest treatment success rate at %.1f%%.", best.Key, best.Value.SuccessRate), true
}

func adverseEventInsight(in InsightInputs) (string, bool) {
	total := in.Basic.DatasetOverview.TotalPatients
	ae := in.Basic.Outcomes.AdverseEvents.TotalWithAE
	rate := 0.0
	if total > 0 {
		rate = float64(ae) / float64(total) * 100
	}
	return fmt.Sprintf("Overall adverse event rate is %.1f%% (%d out of %d patients).", rate, ae, total), true
}

// formatPercent drops a trailing ".0" so 80 prints as "80".
func formatPercent(v float64) string {
	v = math.Round(v*10) / 10
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
