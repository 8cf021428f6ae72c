package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insightFixture() InsightInputs {
	var in InsightInputs
	in.PreferredArm, in.ComparatorArm, in.AdherenceThreshold = "Mounjaro", "LifestyleOnly", 0.8
	in.Basic.DatasetOverview.TotalPatients = 200
	in.Basic.Outcomes.AdverseEvents.TotalWithAE = 37
	in.Effectiveness = Groups[ArmStats]{
		{Key: "Mounjaro", Value: ArmStats{SignificantWeightLossRate: 62.5}},
		{Key: "LifestyleOnly", Value: ArmStats{SignificantWeightLossRate: 20}},
	}
	in.Demographics.ByAdherence = Groups[AdherenceStats]{
		{Key: TierHigh, Value: AdherenceStats{SuccessRate: 80}},
		{Key: TierLow, Value: AdherenceStats{SuccessRate: 55.5}},
	}
	in.Demographics.ByAgeGroup = Groups[AgeGroupStats]{
		{Key: "40-49", Value: AgeGroupStats{SuccessRate: 70}},
		{Key: "<30", Value: AgeGroupStats{SuccessRate: 75}},
		{Key: "60+", Value: AgeGroupStats{SuccessRate: 75}},
	}
	in.Comorbidities.ByCount = Groups[ComorbidityCountStats]{
		{Key: "0", Value: ComorbidityCountStats{SuccessRate: 72}},
		{Key: "1", Value: ComorbidityCountStats{SuccessRate: 65}},
		{Key: "3", Value: ComorbidityCountStats{SuccessRate: 50}},
	}
	in.Demographics.ByCountry = Groups[CountryStats]{
		{Key: "UK", Value: CountryStats{SuccessRate: 66.7}},
		{Key: "USA", Value: CountryStats{SuccessRate: 60}},
	}
	return in
}

func TestGenerateInsightsAllRules(t *testing.T) {
	got := GenerateInsights(insightFixture())
	want := []string{
		"Mounjaro shows 42.5% higher significant weight loss rate compared to LifestyleOnly.",
		"Patients with high adherence (>80%) show 24.5% higher success rate.",
		"Age group <30 shows the highest success rate at 75.0%.",
		"Patients with no comorbidities have 22.0% higher success rate than those with multiple conditions.",
		"UK shows the highest treatment success rate at 66.7%.",
		"Overall adverse event rate is 18.5% (37 out of 200 patients).",
	}
	assert.Equal(t, want, got)
}

func TestGenerateInsightsDeterministic(t *testing.T) {
	in := insightFixture()
	first := GenerateInsights(in)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, GenerateInsights(in))
	}
}

func TestGenerateInsightsRulesSkip(t *testing.T) {
	in := insightFixture()
	in.Effectiveness = in.Effectiveness[1:]
	in.Demographics.ByAdherence = in.Demographics.ByAdherence[:1]
	in.Comorbidities.ByCount = in.Comorbidities.ByCount[1:]
	in.Demographics.ByAgeGroup = nil
	in.Demographics.ByCountry = nil

	got := GenerateInsights(in)
	require.Len(t, got, 1)
	assert.Equal(t, "Overall adverse event rate is 18.5% (37 out of 200 patients).", got[0])
}

func TestArmDeltaRequiresPreferredAhead(t *testing.T) {
	in := insightFixture()
	in.Effectiveness[0].Value.SignificantWeightLossRate = 20
	_, ok := armDeltaInsight(in)
	assert.False(t, ok)
}

func TestComorbidityBurdenPrefersTwo(t *testing.T) {
	in := insightFixture()
	in.Comorbidities.ByCount = append(in.Comorbidities.ByCount,
		Entry[ComorbidityCountStats]{Key: "2", Value: ComorbidityCountStats{SuccessRate: 60}})
	s, ok := comorbidityBurdenInsight(in)
	require.True(t, ok)
	assert.Contains(t, s, "12.0% higher")
}

func TestAdherenceInsightUsesThreshold(t *testing.T) {
	in := insightFixture()
	in.AdherenceThreshold = 0.75
	s, ok := adherenceInsight(in)
	require.True(t, ok)
	assert.Contains(t, s, "(>75%)")
}

func TestSummaryInsightsFromEngine(t *testing.T) {
	s := newEngine(t, studyRecords()).Summary()
	require.NotEmpty(t, s.Insights)
	assert.Equal(t, "Mounjaro shows 60.0% higher significant weight loss rate compared to LifestyleOnly.", s.Insights[0])
	assert.Equal(t, "Overall adverse event rate is 30.0% (3 out of 10 patients).", s.Insights[len(s.Insights)-1])
}

func TestAdherenceInsightUsesUnroundedRates(t *testing.T) {
	in := insightFixture()
	in.Demographics.ByAdherence = Groups[AdherenceStats]{
		{Key: TierHigh, Value: AdherenceStats{NPatients: 3, Successes: 2, SuccessRate: 66.7}},
		{Key: TierLow, Value: AdherenceStats{NPatients: 3, Successes: 1, SuccessRate: 33.3}},
	}
	s, ok := adherenceInsight(in)
	require.True(t, ok)
	assert.Contains(t, s, "show 33.3% higher success rate")
}
