package analysis

import (
	"math"
	"strconv"
	"time"

	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

const dateLayout = "2006-01-02"

// BasicStats is the dataset-wide descriptive summary.
type BasicStats struct {
	DatasetOverview  DatasetOverview  `json:"dataset_overview" yaml:"dataset_overview"`
	Demographics     DemographicStats `json:"demographics" yaml:"demographics"`
	ClinicalMeasures ClinicalMeasures `json:"clinical_measures" yaml:"clinical_measures"`
	Outcomes         OutcomeStats     `json:"outcomes" yaml:"outcomes"`
}

type DatasetOverview struct {
	TotalPatients     int       `json:"total_patients" yaml:"total_patients"`
	UniqueCountries   int       `json:"unique_countries" yaml:"unique_countries"`
	Countries         []string  `json:"countries" yaml:"countries"`
	InterventionTypes []string  `json:"intervention_types" yaml:"intervention_types"`
	OutcomeCategories []string  `json:"outcome_categories" yaml:"outcome_categories"`
	DateRange         DateRange `json:"date_range" yaml:"date_range"`
}

// DateRange spans the earliest start date to the latest end date. Either end
// is empty when no row carries that date.
type DateRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

type AgeStats struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	Std    float64 `json:"std" yaml:"std"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

type DemographicStats struct {
	AgeStats                AgeStats    `json:"age_stats" yaml:"age_stats"`
	GenderDistribution      Groups[int] `json:"gender_distribution" yaml:"gender_distribution"`
	CountryDistribution     Groups[int] `json:"country_distribution" yaml:"country_distribution"`
	AgeGroupDistribution    Groups[int] `json:"age_group_distribution" yaml:"age_group_distribution"`
	BMICategoryDistribution Groups[int] `json:"bmi_category_distribution" yaml:"bmi_category_distribution"`
}

// Summary3 is a mean/median/std triple.
type Summary3 struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	Std    float64 `json:"std" yaml:"std"`
}

func summarize(vals []float64, places int) Summary3 {
	return Summary3{
		Mean:   round(mean(vals), places),
		Median: round(median(vals), places),
		Std:    round(sampleStd(vals), places),
	}
}

type ClinicalMeasures struct {
	BaselineBMI            Summary3 `json:"baseline_bmi" yaml:"baseline_bmi"`
	FollowupBMI            Summary3 `json:"followup_bmi" yaml:"followup_bmi"`
	WeightChange           Summary3 `json:"weight_change" yaml:"weight_change"`
	BMIChange              Summary3 `json:"bmi_change" yaml:"bmi_change"`
	TreatmentDurationDays  Summary3 `json:"treatment_duration_days" yaml:"treatment_duration_days"`
	WeightChangePercentage Summary3 `json:"weight_change_percentage" yaml:"weight_change_percentage"`
	AdherenceRate          Summary3 `json:"adherence_rate" yaml:"adherence_rate"`
}

type AdverseEvents struct {
	TotalWithAE int         `json:"total_with_ae" yaml:"total_with_ae"`
	Rate        float64     `json:"rate" yaml:"rate"`
	AETypes     Groups[int] `json:"ae_types" yaml:"ae_types"`
}

type Hospitalizations struct {
	Mean         float64     `json:"mean" yaml:"mean"`
	Distribution Groups[int] `json:"distribution" yaml:"distribution"`
}

type OutcomeStats struct {
	OutcomeDistribution      Groups[int]      `json:"outcome_distribution" yaml:"outcome_distribution"`
	InterventionDistribution Groups[int]      `json:"intervention_distribution" yaml:"intervention_distribution"`
	AdverseEvents            AdverseEvents    `json:"adverse_events" yaml:"adverse_events"`
	Hospitalizations         Hospitalizations `json:"hospitalizations" yaml:"hospitalizations"`
}

// BasicStats computes the dataset-wide summary. It is recomputed on every call.
func (e *Engine) BasicStats() BasicStats {
	recs := e.records()
	d := e.table.Domains

	labels := func(f func(dataset.Record) string) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = f(r)
		}
		return out
	}

	ages := column(recs, func(r dataset.Record) float64 { return r.Age })
	lo, hi := minMax(ages)

	var aeTypes []string
	for _, r := range recs {
		if r.Derived.HasAdverseEvent {
			aeTypes = append(aeTypes, r.AdverseEvent)
		}
	}
	hosp := column(recs, func(r dataset.Record) float64 { return r.Hospitalizations })

	return BasicStats{
		DatasetOverview: DatasetOverview{
			TotalPatients:     len(recs),
			UniqueCountries:   len(d.Countries),
			Countries:         append([]string(nil), d.Countries...),
			InterventionTypes: append([]string(nil), d.Interventions...),
			OutcomeCategories: append([]string(nil), d.Outcomes...),
			DateRange:         dateRange(recs),
		},
		Demographics: DemographicStats{
			AgeStats: AgeStats{
				Mean:   round(mean(ages), 1),
				Median: round(median(ages), 1),
				Std:    round(sampleStd(ages), 1),
				Min:    round(lo, 1),
				Max:    round(hi, 1),
			},
			GenderDistribution:      countDistribution(labels(func(r dataset.Record) string { return r.Sex })),
			CountryDistribution:     countDistribution(labels(func(r dataset.Record) string { return r.Country })),
			AgeGroupDistribution:    countDistribution(labels(func(r dataset.Record) string { return r.Derived.AgeGroup })),
			BMICategoryDistribution: countDistribution(labels(func(r dataset.Record) string { return r.Derived.BMICategory })),
		},
		ClinicalMeasures: ClinicalMeasures{
			BaselineBMI:            summarize(column(recs, baselineBMI), 1),
			FollowupBMI:            summarize(column(recs, func(r dataset.Record) float64 { return r.FollowupBMI }), 1),
			WeightChange:           summarize(column(recs, weightChange), 2),
			BMIChange:              summarize(column(recs, func(r dataset.Record) float64 { return r.Derived.BMIChange }), 2),
			TreatmentDurationDays:  summarize(column(recs, func(r dataset.Record) float64 { return r.Derived.TreatmentDurationDays }), 1),
			WeightChangePercentage: summarize(column(recs, func(r dataset.Record) float64 { return r.Derived.WeightChangePercentage }), 2),
			AdherenceRate:          summarize(column(recs, adherence), 2),
		},
		Outcomes: OutcomeStats{
			OutcomeDistribution:      countDistribution(labels(func(r dataset.Record) string { return r.Outcome })),
			InterventionDistribution: countDistribution(labels(func(r dataset.Record) string { return r.Intervention })),
			AdverseEvents: AdverseEvents{
				TotalWithAE: len(aeTypes),
				Rate:        percent(len(aeTypes), len(recs)),
				AETypes:     countDistribution(aeTypes),
			},
			Hospitalizations: Hospitalizations{
				Mean:         round(mean(hosp), 1),
				Distribution: countDistribution(numberLabels(hosp)),
			},
		},
	}
}

func dateRange(recs []dataset.Record) DateRange {
	var start, end time.Time
	for _, r := range recs {
		if !r.StartDate.IsZero() && (start.IsZero() || r.StartDate.Before(start)) {
			start = r.StartDate
		}
		if !r.EndDate.IsZero() && (end.IsZero() || r.EndDate.After(end)) {
			end = r.EndDate
		}
	}
	var dr DateRange
	if !start.IsZero() {
		dr.Start = start.Format(dateLayout)
	}
	if !end.IsZero() {
		dr.End = end.Format(dateLayout)
	}
	return dr
}

// numberLabels stringifies finite values; missing values map to "".
func numberLabels(vals []float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}
