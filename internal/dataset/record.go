package dataset

import (
	"math"
	"strings"
	"time"
)

// Outcome labels the derived weight-loss flags are computed from.
const (
	OutcomeSignificant = "Significant Weight Loss"
	OutcomeModerate    = "Moderate Weight Loss"
)

// AssumedBaselineWeightKg is the fixed denominator offset used by
// WeightChangePercentage. It is not a per-patient baseline weight.
const AssumedBaselineWeightKg = 80.0

// Record is one patient-study row. Numeric fields hold NaN when the cell was
// empty; dates hold the zero time.
type Record struct {
	PatientID        string    `json:"patient_id"`
	Age              float64   `json:"age"`
	Sex              string    `json:"sex"`
	Country          string    `json:"country"`
	Intervention     string    `json:"intervention"`
	BaselineBMI      float64   `json:"baseline_bmi"`
	FollowupBMI      float64   `json:"followup_bmi"`
	WeightChangeKg   float64   `json:"weight_change_kg"`
	AdherenceRate    float64   `json:"adherence_rate"`
	Comorbidities    string    `json:"comorbidities"`
	AdverseEvent     string    `json:"adverse_event"`
	Hospitalizations float64   `json:"hospitalizations"`
	Outcome          string    `json:"outcome"`
	DiagnosisDate    time.Time `json:"diagnosis_date"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`

	Derived Derived `json:"derived"`
}

// Derived holds the fields the Preprocessor computes from the raw columns.
type Derived struct {
	TreatmentDurationDays  float64 `json:"treatment_duration_days"`
	BMIChange              float64 `json:"bmi_change"`
	WeightChangePercentage float64 `json:"weight_change_percentage"`
	ComorbidityCount       int     `json:"comorbidity_count"`
	SignificantWeightLoss  bool    `json:"significant_weight_loss"`
	ModerateWeightLoss     bool    `json:"moderate_weight_loss"`
	AnyWeightLoss          bool    `json:"any_weight_loss"`
	HasAdverseEvent        bool    `json:"has_adverse_event"`
	AgeGroup               string  `json:"age_group,omitempty"`
	BMICategory            string  `json:"bmi_category,omitempty"`
}

type bin struct {
	upper float64
	label string
}

// Right-closed bins: a value v falls in the first bin with v <= upper,
// provided v is above the lower edge.
var (
	ageBinLower = 0.0
	ageBins     = []bin{{30, "<30"}, {40, "30-39"}, {50, "40-49"}, {60, "50-59"}, {100, "60+"}}
	bmiBinLower = 0.0
	bmiBins     = []bin{{25, "Normal/Overweight"}, {30, "Obese I"}, {35, "Obese II"}, {100, "Obese III"}}
)

// AgeGroupLabels lists the age buckets in bin order.
func AgeGroupLabels() []string { return binLabels(ageBins) }

// BMICategoryLabels lists the BMI categories in bin order.
func BMICategoryLabels() []string { return binLabels(bmiBins) }

func binLabels(bins []bin) []string {
	out := make([]string, len(bins))
	for i, b := range bins {
		out[i] = b.label
	}
	return out
}

func bucket(v, lower float64, bins []bin) string {
	if math.IsNaN(v) || v <= lower {
		return ""
	}
	for _, b := range bins {
		if v <= b.upper {
			return b.label
		}
	}
	return ""
}

// AgeGroup returns the age bucket for age, or "" when it falls outside every bin.
func AgeGroup(age float64) string { return bucket(age, ageBinLower, ageBins) }

// BMICategory returns the BMI category for bmi, or "" when it falls outside every bin.
func BMICategory(bmi float64) string { return bucket(bmi, bmiBinLower, bmiBins) }

// ComorbidityTokens splits a comorbidity cell on ';' and drops blanks and "None".
func ComorbidityTokens(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ";") {
		tok := strings.TrimSpace(part)
		if tok == "" || tok == "None" {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// HasAdverseEvent reports whether an adverse-event cell records an event.
func HasAdverseEvent(raw string) bool {
	v := strings.TrimSpace(raw)
	return v != "" && v != "None"
}

// Derive computes every derived field from the raw fields. It reads nothing
// from r.Derived, so calling it again on its own output changes nothing.
func Derive(r Record) Derived {
	var d Derived
	d.TreatmentDurationDays = math.NaN()
	if !r.StartDate.IsZero() && !r.EndDate.IsZero() {
		d.TreatmentDurationDays = math.Floor(r.EndDate.Sub(r.StartDate).Hours() / 24)
	}
	d.BMIChange = r.FollowupBMI - r.BaselineBMI
	d.WeightChangePercentage = r.WeightChangeKg / (r.WeightChangeKg + AssumedBaselineWeightKg) * 100
	d.ComorbidityCount = len(ComorbidityTokens(r.Comorbidities))
	d.SignificantWeightLoss = r.Outcome == OutcomeSignificant
	d.ModerateWeightLoss = r.Outcome == OutcomeModerate
	d.AnyWeightLoss = d.SignificantWeightLoss || d.ModerateWeightLoss
	d.HasAdverseEvent = HasAdverseEvent(r.AdverseEvent)
	d.AgeGroup = AgeGroup(r.Age)
	d.BMICategory = BMICategory(r.BaselineBMI)
	return d
}
