package analysis

import (
	"encoding/json"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Summary is the complete analysis artifact handed to renderers and the
// assistant prompt. It shares no memory with the engine's table.
type Summary struct {
	BasicStats             BasicStats       `json:"basic_stats" yaml:"basic_stats"`
	TreatmentEffectiveness Groups[ArmStats] `json:"treatment_effectiveness" yaml:"treatment_effectiveness"`
	DemographicsAnalysis   Demographics     `json:"demographics_analysis" yaml:"demographics_analysis"`
	ComorbiditiesAnalysis  Comorbidities    `json:"comorbidities_analysis" yaml:"comorbidities_analysis"`
	StatisticalTests       StatisticalTests `json:"statistical_tests" yaml:"statistical_tests"`
	Insights               []string         `json:"insights" yaml:"insights"`

	Source    string `json:"-" yaml:"-"`
	ContextID string `json:"-" yaml:"-"`
}

// Summary runs every analysis except clustering and assembles the result.
func (e *Engine) Summary() *Summary {
	basic := e.BasicStats()
	eff := e.Effectiveness()
	demo := e.Demographics()
	como := e.Comorbidities()
	tests := e.StatisticalTests()
	insights := GenerateInsights(InsightInputs{
		Basic:              basic,
		Effectiveness:      eff,
		Demographics:       demo,
		Comorbidities:      como,
		PreferredArm:       e.opt.PreferredArm,
		ComparatorArm:      e.opt.ComparatorArm,
		AdherenceThreshold: e.opt.AdherenceThreshold,
	})
	for _, t := range []struct {
		name   string
		status Status
		reason string
	}{
		{"two_arm", tests.TwoArm.Status, tests.TwoArm.Reason},
		{"adherence_weight_correlation", tests.AdherenceWeightCorrelation.Status, tests.AdherenceWeightCorrelation.Reason},
		{"country_weight_loss_anova", tests.CountryWeightLossANOVA.Status, tests.CountryWeightLossANOVA.Reason},
	} {
		if t.status != StatusOK {
			e.log.Info("statistical test not computed",
				zap.String("test", t.name),
				zap.String("status", string(t.status)),
				zap.String("reason", t.reason))
		}
	}
	return &Summary{
		BasicStats:             basic,
		TreatmentEffectiveness: eff,
		DemographicsAnalysis:   demo,
		ComorbiditiesAnalysis:  como,
		StatisticalTests:       tests,
		Insights:               insights,
		Source:                 e.table.Source,
		ContextID:              e.id,
	}
}

// JSON renders the summary as indented JSON.
func (s *Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// YAML renders the summary as YAML.
func (s *Summary) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}
