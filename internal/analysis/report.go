package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Markdown renders the summary as bracketed report sections.
func (s *Summary) Markdown() string {
	var b strings.Builder
	ov := s.BasicStats.DatasetOverview
	demo := s.BasicStats.Demographics

	b.WriteString("[DATASET SUMMARY]\n")
	if s.Source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", s.Source))
	}
	b.WriteString(fmt.Sprintf("Patients: %d\n", ov.TotalPatients))
	b.WriteString(fmt.Sprintf("Countries (%d): %s\n", ov.UniqueCountries, strings.Join(ov.Countries, ", ")))
	b.WriteString(fmt.Sprintf("Interventions: %s\n", strings.Join(ov.InterventionTypes, ", ")))
	if ov.DateRange.Start != "" || ov.DateRange.End != "" {
		b.WriteString(fmt.Sprintf("Study period: %s to %s\n", ov.DateRange.Start, ov.DateRange.End))
	}

	b.WriteString("\n[DEMOGRAPHICS]\n")
	a := demo.AgeStats
	b.WriteString(fmt.Sprintf("- Age: mean %.1f, median %.1f, std %.1f (range %g-%g)\n", a.Mean, a.Median, a.Std, a.Min, a.Max))
	writeCounts(&b, "Sex", demo.GenderDistribution)
	writeCounts(&b, "Country", demo.CountryDistribution)
	writeCounts(&b, "Age group", demo.AgeGroupDistribution)
	writeCounts(&b, "BMI category", demo.BMICategoryDistribution)

	b.WriteString("\n[CLINICAL MEASURES]\n")
	cm := s.BasicStats.ClinicalMeasures
	for _, m := range []struct {
		name string
		v    Summary3
	}{
		{"baseline_bmi", cm.BaselineBMI},
		{"followup_bmi", cm.FollowupBMI},
		{"weight_change_kg", cm.WeightChange},
		{"bmi_change", cm.BMIChange},
		{"treatment_duration_days", cm.TreatmentDurationDays},
		{"weight_change_percentage", cm.WeightChangePercentage},
		{"adherence_rate", cm.AdherenceRate},
	} {
		b.WriteString(fmt.Sprintf("- %s: mean %g, median %g, std %g\n", m.name, m.v.Mean, m.v.Median, m.v.Std))
	}

	b.WriteString("\n[TREATMENT EFFECTIVENESS]\n")
	for _, g := range s.TreatmentEffectiveness {
		v := g.Value
		b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, v.NPatients))
		b.WriteString(fmt.Sprintf("  • mean weight change %.2f kg, mean BMI change %.2f\n", v.MeanWeightLoss, v.MeanBMIChange))
		b.WriteString(fmt.Sprintf("  • significant loss %.1f%%, any loss %.1f%%\n", v.SignificantWeightLossRate, v.AnyWeightLossRate))
		b.WriteString(fmt.Sprintf("  • adherence %.2f, adverse events %.1f%%, hospitalized %.1f%%\n", v.MeanAdherence, v.AdverseEventRate, v.HospitalizationRate))
	}

	b.WriteString("\n[SUBGROUPS]\n")
	d := s.DemographicsAnalysis
	for _, g := range d.ByCountry {
		b.WriteString(fmt.Sprintf("- country %s (n=%d): success %.1f%%, mean change %.2f kg\n", g.Key, g.Value.NPatients, g.Value.SuccessRate, g.Value.MeanWeightLoss))
	}
	for _, g := range d.ByAgeGroup {
		b.WriteString(fmt.Sprintf("- age %s (n=%d): success %.1f%%, mean change %.2f kg\n", g.Key, g.Value.NPatients, g.Value.SuccessRate, g.Value.MeanWeightLoss))
	}
	for _, g := range d.ByGender {
		b.WriteString(fmt.Sprintf("- sex %s (n=%d): success %.1f%%, mean change %.2f kg\n", g.Key, g.Value.NPatients, g.Value.SuccessRate, g.Value.MeanWeightLoss))
	}
	for _, g := range d.ByAdherence {
		b.WriteString(fmt.Sprintf("- %s adherence (n=%d): success %.1f%%, mean change %.2f kg\n", g.Key, g.Value.NPatients, g.Value.SuccessRate, g.Value.MeanWeightLoss))
	}

	c := s.ComorbiditiesAnalysis
	if len(c.ByCount) > 0 || len(c.ByType) > 0 {
		b.WriteString("\n[COMORBIDITIES]\n")
		for _, g := range c.ByCount {
			b.WriteString(fmt.Sprintf("- %s comorbidities (n=%d): success %.1f%%, mean change %.2f kg\n", g.Key, g.Value.NPatients, g.Value.SuccessRate, g.Value.MeanWeightLoss))
		}
		for _, g := range c.ByType {
			w, wo := g.Value.WithCondition, g.Value.WithoutCondition
			b.WriteString(fmt.Sprintf("- %s: with n=%d success %.1f%% | without n=%d success %.1f%%\n", g.Key, w.NPatients, w.SuccessRate, wo.NPatients, wo.SuccessRate))
		}
	}

	b.WriteString("\n[STATISTICAL TESTS]\n")
	b.WriteString(s.formatTests())

	b.WriteString("\n[INSIGHTS]\n")
	for _, in := range s.Insights {
		b.WriteString("- " + in + "\n")
	}
	return b.String()
}

func writeCounts(b *strings.Builder, label string, g Groups[int]) {
	if len(g) == 0 {
		return
	}
	parts := make([]string, len(g))
	for i, e := range g {
		parts[i] = fmt.Sprintf("%s(%d)", e.Key, e.Value)
	}
	b.WriteString(fmt.Sprintf("- %s: %s\n", label, strings.Join(parts, ", ")))
}

// formatTests lists each test's statistic, p-value and interpretation, or the
// reason it was not computed.
func (s *Summary) formatTests() string {
	var b strings.Builder
	t := s.StatisticalTests
	writeHead := func(title string, status Status, reason string) bool {
		b.WriteString(title + ":\n")
		if status == StatusOK {
			return true
		}
		b.WriteString(fmt.Sprintf("  - Status: %s (%s)\n", status, reason))
		return false
	}
	writeTail := func(p float64, sig bool, interp string) {
		yes := "No"
		if sig {
			yes = "Yes"
		}
		b.WriteString(fmt.Sprintf("  - P-value: %g\n  - Significant: %s\n  - Interpretation: %s\n", p, yes, interp))
	}
	if writeHead("Two Arm", t.TwoArm.Status, t.TwoArm.Reason) && t.TwoArm.Result != nil {
		r := t.TwoArm.Result
		b.WriteString(fmt.Sprintf("  - Test Type: %s (%s vs %s)\n  - T-statistic: %g\n", r.TestType, r.Preferred, r.Comparator, r.TStatistic))
		writeTail(r.PValue, r.Significant, r.Interpretation)
	}
	c := t.AdherenceWeightCorrelation
	if writeHead("Adherence Weight Correlation", c.Status, c.Reason) && c.Result != nil {
		r := c.Result
		b.WriteString(fmt.Sprintf("  - Test Type: %s\n  - Correlation Coefficient: %g\n", r.TestType, r.CorrelationCoefficient))
		writeTail(r.PValue, r.Significant, r.Interpretation)
	}
	a := t.CountryWeightLossANOVA
	if writeHead("Country Weight Loss Anova", a.Status, a.Reason) && a.Result != nil {
		r := a.Result
		b.WriteString(fmt.Sprintf("  - Test Type: %s\n  - F-statistic: %g\n", r.TestType, r.FStatistic))
		writeTail(r.PValue, r.Significant, r.Interpretation)
	}
	return b.String()
}

// PromptContext renders the summary as the context block given to the
// study assistant.
func (s *Summary) PromptContext() string {
	var b strings.Builder
	ov := s.BasicStats.DatasetOverview
	demo := s.BasicStats.Demographics
	cm := s.BasicStats.ClinicalMeasures
	out := s.BasicStats.Outcomes

	b.WriteString("You are an assistant specialized in analyzing a real-world-evidence weight management study.\n")
	b.WriteString(fmt.Sprintf("The dataset contains %d patients comparing %s.\n\n", ov.TotalPatients, strings.Join(ov.InterventionTypes, ", ")))

	b.WriteString("DATASET OVERVIEW:\n")
	b.WriteString(fmt.Sprintf("- Total Patients: %d\n", ov.TotalPatients))
	b.WriteString(fmt.Sprintf("- Countries: %s\n", strings.Join(ov.Countries, ", ")))
	b.WriteString(fmt.Sprintf("- Study Period: %s to %s\n", ov.DateRange.Start, ov.DateRange.End))
	b.WriteString(fmt.Sprintf("- Interventions: %s\n\n", strings.Join(ov.InterventionTypes, ", ")))

	b.WriteString("DEMOGRAPHICS:\n")
	b.WriteString(fmt.Sprintf("- Age Range: %g-%g years (Mean: %g)\n", demo.AgeStats.Min, demo.AgeStats.Max, demo.AgeStats.Mean))
	b.WriteString(fmt.Sprintf("- Gender Distribution: %s\n", compactJSON(demo.GenderDistribution)))
	b.WriteString(fmt.Sprintf("- Country Distribution: %s\n\n", compactJSON(demo.CountryDistribution)))

	b.WriteString("CLINICAL MEASURES:\n")
	b.WriteString(fmt.Sprintf("- Baseline BMI: Mean %g, Median %g\n", cm.BaselineBMI.Mean, cm.BaselineBMI.Median))
	b.WriteString(fmt.Sprintf("- Follow-up BMI: Mean %g, Median %g\n", cm.FollowupBMI.Mean, cm.FollowupBMI.Median))
	b.WriteString(fmt.Sprintf("- Weight Change: Mean %g kg, Median %g kg\n", cm.WeightChange.Mean, cm.WeightChange.Median))
	b.WriteString(fmt.Sprintf("- Adherence Rate: Mean %g, Median %g\n\n", cm.AdherenceRate.Mean, cm.AdherenceRate.Median))

	b.WriteString("TREATMENT EFFECTIVENESS:\n")
	b.WriteString(indentedJSON(s.TreatmentEffectiveness) + "\n\n")

	b.WriteString("OUTCOME DISTRIBUTION:\n")
	b.WriteString(compactJSON(out.OutcomeDistribution) + "\n\n")

	b.WriteString("STATISTICAL FINDINGS:\n")
	b.WriteString(s.formatTests() + "\n")

	b.WriteString("KEY INSIGHTS:\n")
	for _, in := range s.Insights {
		b.WriteString("- " + in + "\n")
	}

	b.WriteString("\nADVERSE EVENTS:\n")
	b.WriteString(fmt.Sprintf("- Total patients with adverse events: %d\n", out.AdverseEvents.TotalWithAE))
	b.WriteString(fmt.Sprintf("- Adverse event types: %s\n\n", compactJSON(out.AdverseEvents.AETypes)))

	b.WriteString("HOSPITALIZATIONS:\n")
	b.WriteString(fmt.Sprintf("- Mean hospitalizations per patient: %g\n", out.Hospitalizations.Mean))
	b.WriteString(fmt.Sprintf("- Distribution: %s\n", compactJSON(out.Hospitalizations.Distribution)))
	return b.String()
}

func indentedJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
