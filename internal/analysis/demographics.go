package analysis

import (
	"math"

	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

// Adherence tier labels.
const (
	TierHigh = "high"
	TierLow  = "low"
)

// Demographics holds the subgroup breakdowns.
type Demographics struct {
	ByCountry   Groups[CountryStats]   `json:"by_country" yaml:"by_country"`
	ByAgeGroup  Groups[AgeGroupStats]  `json:"by_age_group" yaml:"by_age_group"`
	ByGender    Groups[GenderStats]    `json:"by_gender" yaml:"by_gender"`
	ByAdherence Groups[AdherenceStats] `json:"by_adherence" yaml:"by_adherence"`
}

type CountryStats struct {
	NPatients         int     `json:"n_patients" yaml:"n_patients"`
	MeanWeightLoss    float64 `json:"mean_weight_loss" yaml:"mean_weight_loss"`
	SuccessRate       float64 `json:"success_rate" yaml:"success_rate"`
	PreferredArmUsage float64 `json:"preferred_arm_usage" yaml:"preferred_arm_usage"`
}

type AgeGroupStats struct {
	NPatients      int     `json:"n_patients" yaml:"n_patients"`
	MeanWeightLoss float64 `json:"mean_weight_loss" yaml:"mean_weight_loss"`
	SuccessRate    float64 `json:"success_rate" yaml:"success_rate"`
	MeanAdherence  float64 `json:"mean_adherence" yaml:"mean_adherence"`
}

type GenderStats struct {
	NPatients       int     `json:"n_patients" yaml:"n_patients"`
	MeanWeightLoss  float64 `json:"mean_weight_loss" yaml:"mean_weight_loss"`
	SuccessRate     float64 `json:"success_rate" yaml:"success_rate"`
	MeanBaselineBMI float64 `json:"mean_baseline_bmi" yaml:"mean_baseline_bmi"`
}

type AdherenceStats struct {
	NPatients      int     `json:"n_patients" yaml:"n_patients"`
	MeanWeightLoss float64 `json:"mean_weight_loss" yaml:"mean_weight_loss"`
	SuccessRate    float64 `json:"success_rate" yaml:"success_rate"`
	// Successes counts rows with any weight loss, for unrounded comparisons.
	Successes int `json:"-" yaml:"-"`
}

// exactSuccessRate is the unrounded success rate, falling back to the
// reported rate when no counts are known.
func (s AdherenceStats) exactSuccessRate() float64 {
	if s.NPatients == 0 {
		return s.SuccessRate
	}
	return float64(s.Successes) / float64(s.NPatients) * 100
}

// Demographics breaks outcomes down by country, age group, sex and adherence
// tier. Groups appear in first-appearance order; rows without an age bucket
// are left out of by_age_group.
func (e *Engine) Demographics() Demographics {
	recs := e.records()
	var d Demographics

	for _, g := range groupBy(recs, func(r dataset.Record) string { return r.Country }) {
		d.ByCountry = append(d.ByCountry, Entry[CountryStats]{Key: g.Key, Value: CountryStats{
			NPatients:         len(g.Value),
			MeanWeightLoss:    round(mean(column(g.Value, weightChange)), 2),
			SuccessRate:       successRate(g.Value),
			PreferredArmUsage: e.preferredArmUsage(g.Value),
		}})
	}
	for _, g := range groupBy(recs, func(r dataset.Record) string { return r.Derived.AgeGroup }) {
		d.ByAgeGroup = append(d.ByAgeGroup, Entry[AgeGroupStats]{Key: g.Key, Value: AgeGroupStats{
			NPatients:      len(g.Value),
			MeanWeightLoss: round(mean(column(g.Value, weightChange)), 2),
			SuccessRate:    successRate(g.Value),
			MeanAdherence:  round(mean(column(g.Value, adherence)), 2),
		}})
	}
	for _, g := range groupBy(recs, func(r dataset.Record) string { return r.Sex }) {
		d.ByGender = append(d.ByGender, Entry[GenderStats]{Key: g.Key, Value: GenderStats{
			NPatients:       len(g.Value),
			MeanWeightLoss:  round(mean(column(g.Value, weightChange)), 2),
			SuccessRate:     successRate(g.Value),
			MeanBaselineBMI: round(mean(column(g.Value, baselineBMI)), 1),
		}})
	}
	d.ByAdherence = e.adherenceTiers(recs)
	return d
}

func (e *Engine) preferredArmUsage(recs []dataset.Record) float64 {
	return percent(count(recs, func(r dataset.Record) bool { return r.Intervention == e.opt.PreferredArm }), len(recs))
}

// adherenceTiers splits rows at the configured threshold. Rows with missing
// adherence belong to neither tier; empty tiers are omitted.
func (e *Engine) adherenceTiers(recs []dataset.Record) Groups[AdherenceStats] {
	t := e.opt.AdherenceThreshold
	tiers := groupBy(recs, func(r dataset.Record) string {
		switch {
		case math.IsNaN(r.AdherenceRate):
			return ""
		case r.AdherenceRate > t:
			return TierHigh
		default:
			return TierLow
		}
	})
	var out Groups[AdherenceStats]
	for _, key := range []string{TierHigh, TierLow} {
		g, ok := tiers.Get(key)
		if !ok {
			continue
		}
		out = append(out, Entry[AdherenceStats]{Key: key, Value: AdherenceStats{
			NPatients:      len(g),
			MeanWeightLoss: round(mean(column(g, weightChange)), 2),
			SuccessRate:    successRate(g),
			Successes:      count(g, anyLoss),
		}})
	}
	return out
}
