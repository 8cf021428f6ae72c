package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const header = "patient_id,age,sex,country,intervention,baseline_bmi,followup_bmi,weight_change_kg,adherence_rate,comorbidities,adverse_event,hospitalizations,outcome,diagnosis_date,start_date,end_date"

var rows = []string{
	"P001,45,Female,USA,Mounjaro,34.2,30.1,-11.5,0.92,Type 2 Diabetes;Hypertension,Nausea,0,Significant Weight Loss,2022-01-10,2022-02-01,2022-08-01",
	"P002,29,Male,UK,LifestyleOnly,28.0,27.5,-1.2,0.75,None,None,1,No Change,2022-03-05,2022-03-20,2022-09-20",
	"P003,61,Female,USA,LifestyleOnly,41.0,40.0,-3.0,0.85,None,None,0,Moderate Weight Loss,2021-11-01,2022-01-01,2021-12-01",
}

func writeCSV(t *testing.T, name string, lines ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return p
}

func TestLoadCSVDerivesFields(t *testing.T) {
	p := writeCSV(t, "study.csv", append([]string{header}, rows...)...)
	tbl, err := Load(p, LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, "study.csv", tbl.Source)

	first := tbl.Records[0]
	assert.Equal(t, 181.0, first.Derived.TreatmentDurationDays)
	assert.InDelta(t, -4.1, first.Derived.BMIChange, 1e-9)
	assert.InDelta(t, -11.5/(-11.5+80)*100, first.Derived.WeightChangePercentage, 1e-9)
	assert.Equal(t, 2, first.Derived.ComorbidityCount)
	assert.True(t, first.Derived.SignificantWeightLoss)
	assert.True(t, first.Derived.AnyWeightLoss)
	assert.True(t, first.Derived.HasAdverseEvent)
	assert.Equal(t, "40-49", first.Derived.AgeGroup)
	assert.Equal(t, "Obese II", first.Derived.BMICategory)

	// negative durations are kept
	assert.Equal(t, -31.0, tbl.Records[2].Derived.TreatmentDurationDays)
	assert.True(t, tbl.Records[2].Derived.ModerateWeightLoss)
	assert.Equal(t, "60+", tbl.Records[2].Derived.AgeGroup)

	assert.Equal(t, []string{"USA", "UK"}, tbl.Domains.Countries)
	assert.Equal(t, []string{"Mounjaro", "LifestyleOnly"}, tbl.Domains.Interventions)
	assert.Equal(t, []string{"Female", "Male"}, tbl.Domains.Sexes)
	assert.True(t, tbl.Domains.HasIntervention("Mounjaro"))
	assert.False(t, tbl.Domains.HasIntervention("Placebo"))
}

func TestComorbidityCountScenario(t *testing.T) {
	in := []string{"Type 2 Diabetes;Hypertension", "None", "None"}
	var got []int
	for _, c := range in {
		got = append(got, Derive(Record{Comorbidities: c}).ComorbidityCount)
	}
	assert.Equal(t, []int{2, 0, 0}, got)

	assert.Equal(t, 0, Derive(Record{Comorbidities: ""}).ComorbidityCount)
	assert.Equal(t, 1, Derive(Record{Comorbidities: " PCOS ; None ;"}).ComorbidityCount)
}

func TestPreprocessIsIdempotent(t *testing.T) {
	p := writeCSV(t, "study.csv", append([]string{header}, rows...)...)
	tbl, err := Load(p, LoadOptions{})
	require.NoError(t, err)

	again := Preprocess(tbl.Source, tbl.Records)
	require.Equal(t, len(tbl.Records), len(again.Records))
	for i := range tbl.Records {
		assert.Equal(t, tbl.Records[i].Derived, again.Records[i].Derived, "row %d", i)
	}
	assert.Equal(t, tbl.Domains, again.Domains)
}

func TestBuckets(t *testing.T) {
	cases := []struct {
		age  float64
		want string
	}{
		{18, "<30"}, {30, "<30"}, {30.5, "30-39"}, {40, "30-39"}, {59, "50-59"},
		{60, "50-59"}, {99, "60+"}, {0, ""}, {101, ""}, {math.NaN(), ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AgeGroup(c.age), "age %v", c.age)
	}
	assert.Equal(t, "Normal/Overweight", BMICategory(24.9))
	assert.Equal(t, "Obese I", BMICategory(30))
	assert.Equal(t, "Obese III", BMICategory(45))
	assert.Equal(t, "", BMICategory(math.NaN()))
	assert.Len(t, AgeGroupLabels(), 5)
	assert.Len(t, BMICategoryLabels(), 4)
}

func TestLoadMissingColumns(t *testing.T) {
	p := writeCSV(t, "bad.csv", "patient_id,age,sex", "P1,40,Male")
	_, err := Load(p, LoadOptions{})
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Reason, "country")
	assert.Contains(t, le.Reason, "end_date")
	assert.Contains(t, err.Error(), "bad.csv")
}

func TestLoadUnparsableDate(t *testing.T) {
	bad := strings.Replace(rows[1], "2022-03-20", "not-a-date", 1)
	p := writeCSV(t, "dates.csv", header, rows[0], bad)
	_, err := Load(p, LoadOptions{})
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 2, le.Row)
	assert.Equal(t, ColStartDate, le.Column)
}

func TestLoadMalformedNumber(t *testing.T) {
	bad := strings.Replace(rows[0], "0.92", "high", 1)
	p := writeCSV(t, "num.csv", header, bad)
	_, err := Load(p, LoadOptions{})
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ColAdherenceRate, le.Column)
}

func TestLoadEmptyTable(t *testing.T) {
	p := writeCSV(t, "empty.csv", header)
	_, err := Load(p, LoadOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRecords))
}

func TestLoadMissingCellsBecomeNaN(t *testing.T) {
	sparse := "P9,,Male,UK,Mounjaro,,31,-2,,,,,No Change,,2022-01-01,"
	p := writeCSV(t, "sparse.csv", header, sparse)
	tbl, err := Load(p, LoadOptions{})
	require.NoError(t, err)
	r := tbl.Records[0]
	assert.True(t, math.IsNaN(r.Age))
	assert.True(t, math.IsNaN(r.AdherenceRate))
	assert.True(t, math.IsNaN(r.Derived.TreatmentDurationDays))
	assert.Equal(t, "", r.Derived.AgeGroup)
	assert.Equal(t, 0, r.Derived.ComorbidityCount)
	assert.False(t, r.Derived.HasAdverseEvent)
}

func TestReadSemicolonLocale(t *testing.T) {
	h := strings.ReplaceAll(header, ",", ";")
	row := "P1;45;Female;DE;Mounjaro;34,2;30,1;-11,5;0,92;None;None;0;Significant Weight Loss;2022-01-10;2022-02-01;2022-08-01"
	tbl, err := Read(strings.NewReader(h+"\n"+row+"\n"), LoadOptions{Delimiter: ';', DecimalSeparator: ','})
	require.NoError(t, err)
	assert.InDelta(t, 34.2, tbl.Records[0].BaselineBMI, 1e-9)
	assert.InDelta(t, 0.92, tbl.Records[0].AdherenceRate, 1e-9)
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := "Study"
	f.SetSheetName(f.GetSheetName(0), sheet)
	all := append([]string{header}, rows...)
	for r, line := range all {
		for c, v := range strings.Split(line, ",") {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	p := filepath.Join(t.TempDir(), "study.xlsx")
	require.NoError(t, f.SaveAs(p))

	tbl, err := Load(p, LoadOptions{SheetName: "study"})
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, "study.xlsx", tbl.Source)

	_, err = Load(p, LoadOptions{SheetName: "Other"})
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Reason, "Study")

	_, err = Load(p, LoadOptions{SheetIndex: 3})
	require.ErrorAs(t, err, &le)
}

func TestFilterDoesNotMutateSource(t *testing.T) {
	p := writeCSV(t, "study.csv", append([]string{header}, rows...)...)
	tbl, err := Load(p, LoadOptions{})
	require.NoError(t, err)

	sub := tbl.Filter(Filter{Interventions: []string{"lifestyleonly"}})
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, []string{"LifestyleOnly"}, sub.Domains.Interventions)
	assert.Equal(t, []string{"UK", "USA"}, sub.Domains.Countries)
	assert.Equal(t, 3, tbl.Len())

	sub.Records[0].Country = "changed"
	assert.Equal(t, "UK", tbl.Records[1].Country)

	both := tbl.Filter(Filter{Countries: []string{"USA"}, Outcomes: []string{"Moderate Weight Loss"}})
	require.Equal(t, 1, both.Len())
	assert.Equal(t, "P003", both.Records[0].PatientID)

	assert.Equal(t, 3, tbl.Filter(Filter{}).Len())
}

func TestPreprocessLabelsEmptyCategories(t *testing.T) {
	tbl := Preprocess("mem", []Record{{PatientID: "a", Intervention: "Mounjaro", Country: "UK"}, {PatientID: "b"}})
	assert.Equal(t, []string{"Mounjaro", UnknownLabel}, tbl.Domains.Interventions)
	assert.Equal(t, UnknownLabel, tbl.Records[1].Outcome)
	assert.Equal(t, UnknownLabel, tbl.Records[1].Sex)
}

func TestSlashDatesAreMonthFirst(t *testing.T) {
	row := strings.Replace(rows[0], "2022-02-01,2022-08-01", "03/04/2023,3/5/2023", 1)
	p := writeCSV(t, "slash.csv", header, row)
	tbl, err := Load(p, LoadOptions{})
	require.NoError(t, err)

	r := tbl.Records[0]
	assert.Equal(t, time.Date(2023, time.March, 4, 0, 0, 0, 0, time.UTC), r.StartDate)
	assert.Equal(t, time.Date(2023, time.March, 5, 0, 0, 0, 0, time.UTC), r.EndDate)
	assert.Equal(t, 1.0, r.Derived.TreatmentDurationDays)

	bad := strings.Replace(rows[0], "2022-02-01", "13/04/2023", 1)
	_, err = Load(writeCSV(t, "dayfirst.csv", header, bad), LoadOptions{})
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ColStartDate, le.Column)
}
