package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/rwestudy-cli/internal/utils"
)

var (
	anaOutputPath string
	anaFormat     string
	anaInput      inputFlags
	anaArms       armFlags
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a study table (CSV/TSV/XLSX) and produce the full summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(anaFormat)
		if err != nil {
			return err
		}
		eng, _, err := openEngine(args[0], &anaInput, &anaArms)
		if err != nil {
			return err
		}
		out, err := renderSummary(eng.Summary(), format)
		if err != nil {
			return err
		}

		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out); err != nil {
				return err
			}
			successf(cmd.OutOrStdout(), "Wrote analysis to %s", anaOutputPath)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(append(out, '\n'))
		return err
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write analysis")
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "", "output format: markdown|json|yaml|table (defaults to config)")
	anaInput.register(analyzeCmd)
	anaArms.register(analyzeCmd)
}
