package analysis

import "github.com/KaramelBytes/rwestudy-cli/internal/dataset"

// ArmStats summarizes one intervention arm.
type ArmStats struct {
	NPatients                 int     `json:"n_patients" yaml:"n_patients"`
	MeanWeightLoss            float64 `json:"mean_weight_loss" yaml:"mean_weight_loss"`
	MeanBMIChange             float64 `json:"mean_bmi_change" yaml:"mean_bmi_change"`
	SignificantWeightLossRate float64 `json:"significant_weight_loss_rate" yaml:"significant_weight_loss_rate"`
	AnyWeightLossRate         float64 `json:"any_weight_loss_rate" yaml:"any_weight_loss_rate"`
	MeanAdherence             float64 `json:"mean_adherence" yaml:"mean_adherence"`
	AdverseEventRate          float64 `json:"adverse_event_rate" yaml:"adverse_event_rate"`
	HospitalizationRate       float64 `json:"hospitalization_rate" yaml:"hospitalization_rate"`
}

// Effectiveness reports one entry per discovered intervention, in discovery
// order. The entries' patient counts sum to the table size.
func (e *Engine) Effectiveness() Groups[ArmStats] {
	byArm := groupBy(e.records(), func(r dataset.Record) string { return r.Intervention })
	out := make(Groups[ArmStats], 0, len(byArm))
	for _, g := range byArm {
		out = append(out, Entry[ArmStats]{Key: g.Key, Value: armStats(g.Value)})
	}
	return out
}

func armStats(recs []dataset.Record) ArmStats {
	n := len(recs)
	return ArmStats{
		NPatients:                 n,
		MeanWeightLoss:            round(mean(column(recs, weightChange)), 2),
		MeanBMIChange:             round(mean(column(recs, func(r dataset.Record) float64 { return r.Derived.BMIChange })), 2),
		SignificantWeightLossRate: percent(count(recs, func(r dataset.Record) bool { return r.Derived.SignificantWeightLoss }), n),
		AnyWeightLossRate:         percent(count(recs, anyLoss), n),
		MeanAdherence:             round(mean(column(recs, adherence)), 2),
		AdverseEventRate:          percent(count(recs, func(r dataset.Record) bool { return r.Derived.HasAdverseEvent }), n),
		HospitalizationRate:       percent(count(recs, func(r dataset.Record) bool { return r.Hospitalizations > 0 }), n),
	}
}
