package cmd

import (
	"fmt"
	"math"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/rwestudy-cli/internal/analysis"
	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

var (
	exCountries     []string
	exInterventions []string
	exOutcomes      []string
	exLimit         int
	exAnalyze       bool
	exFormat        string
	exInput         inputFlags
	exArms          armFlags
)

var exploreCmd = &cobra.Command{
	Use:   "explore <file>",
	Short: "Filter patient records and optionally analyze the subset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		lopt, err := exInput.loadOptions(c)
		if err != nil {
			return err
		}
		tbl, err := dataset.Load(args[0], lopt)
		if err != nil {
			return err
		}
		sub := tbl.Filter(dataset.Filter{
			Countries:     exCountries,
			Interventions: exInterventions,
			Outcomes:      exOutcomes,
		})
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Matched %d of %d patients\n", sub.Len(), tbl.Len())
		if sub.Len() == 0 {
			warnf(cmd.ErrOrStderr(), "no records match the filter")
			return nil
		}
		renderRecords(cmd, sub, exLimit)

		if !exAnalyze {
			return nil
		}
		format, err := outputFormat(exFormat)
		if err != nil {
			return err
		}
		eng, err := analysis.New(sub, engineOptions(c, &exArms), analysis.WithLogger(logger))
		if err != nil {
			return err
		}
		body, err := renderSummary(eng.Summary(), format)
		if err != nil {
			return err
		}
		_, err = out.Write(append(append([]byte("\n"), body...), '\n'))
		return err
	},
}

func renderRecords(cmd *cobra.Command, t *dataset.Table, limit int) {
	tw := tablewriter.NewWriter(cmd.OutOrStdout())
	tw.SetHeader([]string{"Patient", "Age", "Sex", "Country", "Intervention", "Δkg", "Adherence", "Outcome"})
	n := t.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	for _, r := range t.Records[:n] {
		tw.Append([]string{
			r.PatientID, cell(r.Age, 0), r.Sex, r.Country, r.Intervention,
			cell(r.WeightChangeKg, 1), cell(r.AdherenceRate, 2), r.Outcome,
		})
	}
	tw.Render()
	if n < t.Len() {
		fmt.Fprintf(cmd.OutOrStdout(), "... %d more\n", t.Len()-n)
	}
}

// cell formats a numeric field, leaving missing values blank.
func cell(v float64, places int) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', places, 64)
}

func init() {
	rootCmd.AddCommand(exploreCmd)
	exploreCmd.Flags().StringSliceVar(&exCountries, "country", nil, "keep only these countries (repeatable)")
	exploreCmd.Flags().StringSliceVar(&exInterventions, "intervention", nil, "keep only these interventions (repeatable)")
	exploreCmd.Flags().StringSliceVar(&exOutcomes, "outcome", nil, "keep only these outcome labels (repeatable)")
	exploreCmd.Flags().IntVar(&exLimit, "limit", 20, "maximum rows to print (0 = all)")
	exploreCmd.Flags().BoolVar(&exAnalyze, "analyze", false, "run the full analysis on the filtered subset")
	exploreCmd.Flags().StringVar(&exFormat, "format", "", "analysis output format: markdown|json|yaml|table")
	exInput.register(exploreCmd)
	exArms.register(exploreCmd)
}
