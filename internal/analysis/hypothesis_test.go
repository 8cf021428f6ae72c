package analysis

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

func twoArmRecords(pref, comp []float64) []dataset.Record {
	var recs []dataset.Record
	for i, v := range pref {
		recs = append(recs, patient("M"+string(rune('a'+i)), "Mounjaro", "USA", v, 0.5+float64(i)/10))
	}
	for i, v := range comp {
		recs = append(recs, patient("L"+string(rune('a'+i)), "LifestyleOnly", "UK", v, 0.4+float64(i)/10))
	}
	return recs
}

func TestTwoArmStudentT(t *testing.T) {
	e := newEngine(t, twoArmRecords([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10}))
	res, err := e.TwoArmTest()
	require.NoError(t, err)
	assert.Equal(t, "Independent t-test", res.TestType)
	assert.Equal(t, -1.897, res.TStatistic)
	assert.Equal(t, 8.0, res.DegreesOfFreedom)
	assert.InDelta(t, 0.0943, res.PValue, 0.001)
	assert.False(t, res.Significant)
	assert.Equal(t, "No significant difference between interventions", res.Interpretation)
}

func TestTwoArmWelch(t *testing.T) {
	tbl := dataset.Preprocess("t", twoArmRecords([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10}))
	opt := DefaultOptions()
	opt.EqualVariance = false
	e, err := New(tbl, opt)
	require.NoError(t, err)

	res, err := e.TwoArmTest()
	require.NoError(t, err)
	assert.Equal(t, "Welch's t-test", res.TestType)
	assert.Equal(t, -1.897, res.TStatistic)
	assert.InDelta(t, 5.882, res.DegreesOfFreedom, 0.001)
}

func TestTwoArmSignificant(t *testing.T) {
	e := newEngine(t, twoArmRecords([]float64{-12, -10, -11, -13, -9}, []float64{-1, 0, -2, 1, -1}))
	res, err := e.TwoArmTest()
	require.NoError(t, err)
	assert.True(t, res.Significant)
	assert.Less(t, res.PValue, 0.001)
	assert.Equal(t, "Mounjaro shows significantly different weight loss compared to LifestyleOnly", res.Interpretation)
}

func TestTwoArmScenarioD(t *testing.T) {
	recs := []dataset.Record{
		patient("1", "LifestyleOnly", "USA", -1, 0.7),
		patient("2", "LifestyleOnly", "UK", -2, 0.8),
		patient("3", "LifestyleOnly", "UK", 1, 0.9),
	}
	e := newEngine(t, recs)

	_, err := e.TwoArmTest()
	var ce *ComparisonError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"Mounjaro"}, ce.Missing)
	assert.Contains(t, err.Error(), "insufficient groups")

	s := e.Summary()
	assert.Equal(t, StatusSkipped, s.StatisticalTests.TwoArm.Status)
	assert.Nil(t, s.StatisticalTests.TwoArm.Result)
	assert.Contains(t, s.StatisticalTests.TwoArm.Reason, "insufficient groups")
	assert.True(t, s.StatisticalTests.AdherenceWeightCorrelation.OK())
	assert.Equal(t, 3, s.BasicStats.DatasetOverview.TotalPatients)
	require.NotEmpty(t, s.Insights)
	assert.Contains(t, s.Insights[len(s.Insights)-1], "Overall adverse event rate")
}

func TestTwoArmTooFewObservations(t *testing.T) {
	e := newEngine(t, twoArmRecords([]float64{-3}, []float64{-1, -2}))
	_, err := e.TwoArmTest()
	var ce *ComparisonError
	require.True(t, errors.As(err, &ce))
	assert.Empty(t, ce.Missing)
}

func TestTwoArmZeroVarianceUndefined(t *testing.T) {
	e := newEngine(t, twoArmRecords([]float64{-2, -2}, []float64{-2, -2}))
	_, err := e.TwoArmTest()
	assert.True(t, errors.Is(err, ErrUndefinedStatistic))
	assert.Equal(t, StatusUndefined, e.StatisticalTests().TwoArm.Status)
}

func TestCorrelationScenarioC(t *testing.T) {
	var recs []dataset.Record
	for i := 0; i < 10; i++ {
		recs = append(recs, patient(string(rune('a'+i)), "Mounjaro", "USA", float64(-i), 0.9))
	}
	e := newEngine(t, recs)

	_, err := e.AdherenceCorrelation()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUndefinedStatistic))

	out := e.StatisticalTests().AdherenceWeightCorrelation
	assert.Equal(t, StatusUndefined, out.Status)
	assert.False(t, out.OK())
}

func TestCorrelationPerfectAndPermutationInvariant(t *testing.T) {
	var recs []dataset.Record
	for i := 0; i < 8; i++ {
		recs = append(recs, patient(string(rune('a'+i)), "Mounjaro", "USA", -10*float64(i)/10, float64(i)/10))
	}
	res, err := newEngine(t, recs).AdherenceCorrelation()
	require.NoError(t, err)
	assert.Equal(t, -1.0, res.CorrelationCoefficient)
	assert.Equal(t, 0.0, res.PValue)
	assert.Equal(t, "Strong", res.Strength)

	rng := rand.New(rand.NewSource(7))
	noisy := studyRecords()
	base, err := newEngine(t, noisy).AdherenceCorrelation()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, base.CorrelationCoefficient, -1.0)
	assert.LessOrEqual(t, base.CorrelationCoefficient, 1.0)
	for i := 0; i < 5; i++ {
		perm := append([]dataset.Record(nil), noisy...)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		got, err := newEngine(t, perm).AdherenceCorrelation()
		require.NoError(t, err)
		assert.Equal(t, base.CorrelationCoefficient, got.CorrelationCoefficient)
		assert.InDelta(t, base.PValue, got.PValue, 1e-6)
	}
}

func TestCorrelationNeedsThreePairs(t *testing.T) {
	e := newEngine(t, []dataset.Record{patient("1", "A", "X", -1, 0.5), patient("2", "A", "X", -2, 0.6)})
	_, err := e.AdherenceCorrelation()
	var ce *ComparisonError
	assert.True(t, errors.As(err, &ce))
}

func TestCorrelationStrength(t *testing.T) {
	cases := map[float64]string{0.1: "Weak", -0.3: "Weak", 0.31: "Moderate", -0.7: "Moderate", 0.71: "Strong", -0.95: "Strong"}
	for r, want := range cases {
		assert.Equal(t, want, correlationStrength(r), "r=%v", r)
	}
}

func TestCountryANOVA(t *testing.T) {
	recs := []dataset.Record{
		patient("1", "A", "X", 1, 0.5), patient("2", "A", "X", 2, 0.5), patient("3", "A", "X", 3, 0.5),
		patient("4", "A", "Y", 4, 0.5), patient("5", "A", "Y", 5, 0.5), patient("6", "A", "Y", 6, 0.5),
	}
	res, err := newEngine(t, recs).CountryANOVA()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Groups)
	assert.Equal(t, 13.5, res.FStatistic)
	assert.InDelta(t, 0.0213, res.PValue, 0.002)
	assert.True(t, res.Significant)
	assert.Equal(t, "Significant differences in weight loss across countries", res.Interpretation)
}

func TestCountryANOVADegenerate(t *testing.T) {
	single := []dataset.Record{patient("1", "A", "X", 1, 0.5), patient("2", "A", "X", 2, 0.5)}
	_, err := newEngine(t, single).CountryANOVA()
	var ce *ComparisonError
	assert.True(t, errors.As(err, &ce), "one country")

	onePerCountry := []dataset.Record{patient("1", "A", "X", 1, 0.5), patient("2", "A", "Y", 2, 0.5)}
	_, err = newEngine(t, onePerCountry).CountryANOVA()
	assert.True(t, errors.As(err, &ce), "N must exceed k")

	flat := []dataset.Record{
		patient("1", "A", "X", 1, 0.5), patient("2", "A", "X", 1, 0.5),
		patient("3", "A", "Y", 2, 0.5), patient("4", "A", "Y", 2, 0.5),
	}
	_, err = newEngine(t, flat).CountryANOVA()
	assert.True(t, errors.Is(err, ErrUndefinedStatistic))
}
