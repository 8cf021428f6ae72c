package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Required column names, in the order they are reported when missing.
const (
	ColPatientID        = "patient_id"
	ColAge              = "age"
	ColSex              = "sex"
	ColCountry          = "country"
	ColIntervention     = "intervention"
	ColBaselineBMI      = "baseline_bmi"
	ColFollowupBMI      = "followup_bmi"
	ColWeightChangeKg   = "weight_change_kg"
	ColAdherenceRate    = "adherence_rate"
	ColComorbidities    = "comorbidities"
	ColAdverseEvent     = "adverse_event"
	ColHospitalizations = "hospitalizations"
	ColOutcome          = "outcome"
	ColDiagnosisDate    = "diagnosis_date"
	ColStartDate        = "start_date"
	ColEndDate          = "end_date"
)

// RequiredColumns is the fixed input schema.
var RequiredColumns = []string{
	ColPatientID, ColAge, ColSex, ColCountry, ColIntervention,
	ColBaselineBMI, ColFollowupBMI, ColWeightChangeKg, ColAdherenceRate,
	ColComorbidities, ColAdverseEvent, ColHospitalizations, ColOutcome,
	ColDiagnosisDate, ColStartDate, ColEndDate,
}

// ErrNoRecords is wrapped by a LoadError when the source has a header but no rows.
var ErrNoRecords = errors.New("no data rows")

// LoadError reports a fatal problem with the input table. Row is 1-based over
// data rows (0 for header-level problems).
type LoadError struct {
	Path   string
	Row    int
	Column string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("load")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(filepath.Base(e.Path))
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadOptions controls how the source table is read.
type LoadOptions struct {
	// Delimiter for delimited text. If 0, chosen from the file extension.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// XLSX sheet selection; SheetIndex is 1-based and used when SheetName is empty.
	SheetName  string
	SheetIndex int
}

// Load reads a CSV/TSV or XLSX file and returns the enriched table.
func Load(path string, opt LoadOptions) (*Table, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		rows, err := readXLSXRows(path, opt)
		if err != nil {
			return nil, err
		}
		return fromRows(path, rows, opt)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "open", Err: err}
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	t, err := Read(f, opt)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Path == "" {
			le.Path = path
		}
		return nil, err
	}
	t.Source = filepath.Base(path)
	return t, nil
}

// Read parses delimited text from r. The delimiter defaults to ','.
func Read(r io.Reader, opt LoadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = opt.Delimiter
	if cr.Comma == 0 {
		cr.Comma = ','
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &LoadError{Row: len(rows), Reason: "read csv", Err: err}
		}
		rows = append(rows, rec)
	}
	return fromRows("", rows, opt)
}

func readXLSXRows(path string, opt LoadOptions) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "open xlsx", Err: err}
	}
	defer f.Close()
	sheets := f.GetSheetList()
	sheet := ""
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.SheetName) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("sheet %q not found (available: %s)", opt.SheetName, strings.Join(sheets, ", "))}
		}
	} else {
		idx := opt.SheetIndex
		if idx <= 0 {
			idx = 1
		}
		if idx > len(sheets) {
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("sheet index %d out of range (workbook has %d sheets)", idx, len(sheets))}
		}
		sheet = sheets[idx-1]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "read sheet " + sheet, Err: err}
	}
	return rows, nil
}

// fromRows maps a header row plus data rows onto Records. Any missing column,
// unparsable number or unparsable date fails the whole table.
func fromRows(path string, rows [][]string, opt LoadOptions) (*Table, error) {
	if len(rows) == 0 {
		return nil, &LoadError{Path: path, Reason: "missing header"}
	}
	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &LoadError{Path: path, Reason: "missing required columns: " + strings.Join(missing, ", ")}
	}
	if len(rows) == 1 {
		return nil, &LoadError{Path: path, Reason: "empty table", Err: ErrNoRecords}
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 1
		if isBlankRow(row) {
			continue
		}
		cell := func(col string) string {
			idx := index[col]
			if idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		var perr error
		num := func(col string) float64 {
			if perr != nil {
				return math.NaN()
			}
			v, err := parseNumber(cell(col), opt)
			if err != nil {
				perr = &LoadError{Path: path, Row: rowNum, Column: col, Reason: "malformed number", Err: err}
			}
			return v
		}
		date := func(col string) time.Time {
			if perr != nil {
				return time.Time{}
			}
			v := cell(col)
			if v == "" {
				return time.Time{}
			}
			t, ok := parseTimeMaybe(v)
			if !ok {
				perr = &LoadError{Path: path, Row: rowNum, Column: col, Reason: fmt.Sprintf("unparsable date %q", v)}
			}
			return t
		}
		rec := Record{
			PatientID:        cell(ColPatientID),
			Age:              num(ColAge),
			Sex:              cell(ColSex),
			Country:          cell(ColCountry),
			Intervention:     cell(ColIntervention),
			BaselineBMI:      num(ColBaselineBMI),
			FollowupBMI:      num(ColFollowupBMI),
			WeightChangeKg:   num(ColWeightChangeKg),
			AdherenceRate:    num(ColAdherenceRate),
			Comorbidities:    cell(ColComorbidities),
			AdverseEvent:     cell(ColAdverseEvent),
			Hospitalizations: num(ColHospitalizations),
			Outcome:          cell(ColOutcome),
			DiagnosisDate:    date(ColDiagnosisDate),
			StartDate:        date(ColStartDate),
			EndDate:          date(ColEndDate),
		}
		if perr != nil {
			return nil, perr
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, &LoadError{Path: path, Reason: "empty table", Err: ErrNoRecords}
	}
	return Preprocess(filepath.Base(path), records), nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sniffDelimiter(path string) rune {
	name := strings.ToLower(path)
	if strings.HasSuffix(name, ".tsv") {
		return '\t'
	}
	return ','
}

// parseTimeMaybe reads ISO dates and month-first slash dates. Slash dates
// are never read day-first, whatever their digit width.
func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "2006-01-02 15:04", "2006-01-02 15:04:05",
		"2006-01-02T15:04:05", "1/2/2006", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber returns NaN for an empty cell and an error for anything that
// does not parse as a number.
func parseNumber(s string, opt LoadOptions) (float64, error) {
	raw := strings.TrimSpace(s)
	if raw == "" || strings.EqualFold(raw, "nan") || strings.EqualFold(raw, "na") {
		return math.NaN(), nil
	}
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	return strconv.ParseFloat(raw, 64)
}
