package cmd

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/rwestudy-cli/internal/utils"
)

var (
	ctxMaxTokens int
	ctxBreakdown bool
	ctxOutput    string
	ctxInput     inputFlags
	ctxArms      armFlags
)

var contextCmd = &cobra.Command{
	Use:   "context <file>",
	Short: "Print the assistant prompt context for a study table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := openEngine(args[0], &ctxInput, &ctxArms)
		if err != nil {
			return err
		}
		text := eng.Summary().PromptContext()

		limit := currentConfig().PromptMaxTokens
		if cmd.Flags().Changed("max-tokens") {
			limit = ctxMaxTokens
		}
		tokens := utils.CountTokens(text)
		if limit > 0 && tokens > limit {
			warnf(cmd.ErrOrStderr(), "context is ~%d tokens, truncating to %d", tokens, limit)
			text = utils.TruncateToTokenLimit(text, limit)
			tokens = utils.CountTokens(text)
		}

		if ctxBreakdown {
			secs := utils.SplitSections(text)
			counts := utils.TokenBreakdown(secs)
			tw := tablewriter.NewWriter(cmd.ErrOrStderr())
			tw.SetHeader([]string{"Section", "Tokens"})
			for i, s := range secs {
				tw.Append([]string{s.Label, fmt.Sprint(counts[i])})
			}
			tw.SetFooter([]string{"Total", fmt.Sprint(tokens)})
			tw.Render()
		}

		if ctxOutput != "" {
			if err := utils.SafeWriteFile(ctxOutput, []byte(text)); err != nil {
				return err
			}
			successf(cmd.OutOrStdout(), "Wrote context (~%d tokens) to %s", tokens, ctxOutput)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		fmt.Fprintf(cmd.ErrOrStderr(), "~%d tokens\n", tokens)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().IntVar(&ctxMaxTokens, "max-tokens", 0, "truncate context to this many tokens (0 = no limit; defaults to config)")
	contextCmd.Flags().BoolVar(&ctxBreakdown, "breakdown", false, "print per-section token estimates to stderr")
	contextCmd.Flags().StringVarP(&ctxOutput, "output", "o", "", "optional path to write the context")
	ctxInput.register(contextCmd)
	ctxArms.register(contextCmd)
}
