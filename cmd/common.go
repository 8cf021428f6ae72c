package cmd

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/rwestudy-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/rwestudy-cli/internal/config"
	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

// inputFlags are the table-reading flags shared by every command that loads a file.
type inputFlags struct {
	delimiter string
	decimal   string
	thousands string
	sheetName string
	sheetIdx  int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (defaults to config, then file extension)")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	cmd.Flags().IntVar(&f.sheetIdx, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

func (f *inputFlags) loadOptions(c cfgpkg.Global) (dataset.LoadOptions, error) {
	opt := dataset.LoadOptions{SheetName: f.sheetName, SheetIndex: f.sheetIdx}
	delim := f.delimiter
	if delim == "" {
		delim = c.Delimiter
	}
	switch delim {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", delim)
	}
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	return opt, nil
}

// armFlags override the two-arm comparison from the command line.
type armFlags struct {
	preferred  string
	comparator string
	welch      bool
}

func (f *armFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.preferred, "preferred-arm", "", "intervention compared against the comparator (overrides config)")
	cmd.Flags().StringVar(&f.comparator, "comparator-arm", "", "comparator intervention (overrides config)")
	cmd.Flags().BoolVar(&f.welch, "welch", false, "use Welch's t-test instead of Student's")
}

// engineOptions maps configuration onto analysis options.
func engineOptions(c cfgpkg.Global, arms *armFlags) analysis.Options {
	opt := analysis.Options{
		PreferredArm:       c.PreferredArm,
		ComparatorArm:      c.ComparatorArm,
		Alpha:              c.Alpha,
		EqualVariance:      c.EqualVariance,
		AdherenceThreshold: c.AdherenceThreshold,
		WatchList:          append([]string(nil), c.WatchList...),
		Cluster: analysis.ClusterOptions{
			K:       c.ClusterK,
			Seed:    c.ClusterSeed,
			NInit:   c.ClusterNInit,
			MaxIter: c.ClusterMaxIter,
		},
	}
	if arms != nil {
		if arms.preferred != "" {
			opt.PreferredArm = arms.preferred
		}
		if arms.comparator != "" {
			opt.ComparatorArm = arms.comparator
		}
		if arms.welch {
			opt.EqualVariance = false
		}
	}
	return opt
}

// openEngine loads path and builds an analysis engine over it.
func openEngine(path string, in *inputFlags, arms *armFlags) (*analysis.Engine, *dataset.Table, error) {
	c := currentConfig()
	lopt, err := in.loadOptions(c)
	if err != nil {
		return nil, nil, err
	}
	tbl, err := dataset.Load(path, lopt)
	if err != nil {
		return nil, nil, err
	}
	eng, err := analysis.New(tbl, engineOptions(c, arms), analysis.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return eng, tbl, nil
}

// outputFormat resolves --format against the configured default.
func outputFormat(flag string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(flag))
	if f == "" {
		f = currentConfig().OutputFormat
	}
	switch f {
	case "md":
		return "markdown", nil
	case "markdown", "json", "yaml", "table":
		return f, nil
	default:
		return "", fmt.Errorf("unsupported --format: %s (use markdown|json|yaml|table)", flag)
	}
}

func formatExt(format string) string {
	switch format {
	case "json":
		return ".json"
	case "yaml":
		return ".yaml"
	case "table":
		return ".txt"
	default:
		return ".md"
	}
}

// renderSummary encodes a summary in the requested format.
func renderSummary(s *analysis.Summary, format string) ([]byte, error) {
	switch format {
	case "json":
		return s.JSON()
	case "yaml":
		return s.YAML()
	case "table":
		return summaryTables(s), nil
	default:
		return []byte(s.Markdown()), nil
	}
}

// summaryTables renders the arm comparison and tests as terminal tables.
func summaryTables(s *analysis.Summary) []byte {
	var buf bytes.Buffer
	ov := s.BasicStats.DatasetOverview
	fmt.Fprintf(&buf, "Patients: %d  Countries: %d  Period: %s to %s\n\n",
		ov.TotalPatients, ov.UniqueCountries, ov.DateRange.Start, ov.DateRange.End)

	tw := tablewriter.NewWriter(&buf)
	tw.SetHeader([]string{"Intervention", "N", "Mean Δkg", "Mean ΔBMI", "Sig. loss %", "Any loss %", "Adherence", "AE %", "Hosp. %"})
	for _, g := range s.TreatmentEffectiveness {
		v := g.Value
		tw.Append([]string{
			g.Key, strconv.Itoa(v.NPatients),
			ff(v.MeanWeightLoss, 2), ff(v.MeanBMIChange, 2),
			ff(v.SignificantWeightLossRate, 1), ff(v.AnyWeightLossRate, 1),
			ff(v.MeanAdherence, 2), ff(v.AdverseEventRate, 1), ff(v.HospitalizationRate, 1),
		})
	}
	tw.Render()
	buf.WriteString("\n")

	tt := tablewriter.NewWriter(&buf)
	tt.SetHeader([]string{"Test", "Status", "Statistic", "P-value", "Significant"})
	t := s.StatisticalTests
	addTest := func(name string, status analysis.Status, reason string, stat, p float64, sig bool) {
		if status != analysis.StatusOK {
			tt.Append([]string{name, string(status) + ": " + reason, "", "", ""})
			return
		}
		tt.Append([]string{name, string(status), ff(stat, 3), strconv.FormatFloat(p, 'f', 6, 64), yesNo(sig)})
	}
	if r := t.TwoArm.Result; r != nil {
		addTest("t-test", t.TwoArm.Status, t.TwoArm.Reason, r.TStatistic, r.PValue, r.Significant)
	} else {
		addTest("t-test", t.TwoArm.Status, t.TwoArm.Reason, 0, 0, false)
	}
	if r := t.AdherenceWeightCorrelation.Result; r != nil {
		addTest("pearson r", t.AdherenceWeightCorrelation.Status, "", r.CorrelationCoefficient, r.PValue, r.Significant)
	} else {
		addTest("pearson r", t.AdherenceWeightCorrelation.Status, t.AdherenceWeightCorrelation.Reason, 0, 0, false)
	}
	if r := t.CountryWeightLossANOVA.Result; r != nil {
		addTest("anova F", t.CountryWeightLossANOVA.Status, "", r.FStatistic, r.PValue, r.Significant)
	} else {
		addTest("anova F", t.CountryWeightLossANOVA.Status, t.CountryWeightLossANOVA.Reason, 0, 0, false)
	}
	tt.Render()

	buf.WriteString("\nInsights:\n")
	for _, in := range s.Insights {
		buf.WriteString("- " + in + "\n")
	}
	return buf.Bytes()
}

func ff(v float64, places int) string { return strconv.FormatFloat(v, 'f', places, 64) }

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
