package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/rwestudy-cli/internal/utils"
)

var (
	abOutDir string
	abFormat string
	abJobs   int
	abQuiet  bool
	abInput  inputFlags
	abArms   armFlags
)

type batchResult struct {
	path string
	out  []byte
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple study tables concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		format, err := outputFormat(abFormat)
		if err != nil {
			return err
		}
		stdout := cmd.OutOrStdout()

		results := make([]batchResult, len(files))
		var mu sync.Mutex
		done := 0
		total := len(files)

		g, ctx := errgroup.WithContext(cmd.Context())
		jobs := abJobs
		if jobs < 1 {
			jobs = 1
		}
		g.SetLimit(jobs)
		for i, path := range files {
			i, path := i, path
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				eng, _, err := openEngine(path, &abInput, &abArms)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				out, err := renderSummary(eng.Summary(), format)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				results[i] = batchResult{path: path, out: out}

				mu.Lock()
				done++
				if !abQuiet {
					fmt.Fprintf(stdout, "[%d/%d] Processed %s\n", done, total, filepath.Base(path))
				}
				mu.Unlock()
				logger.Debug("batch file analyzed", zap.String("path", path), zap.String("context_id", eng.ID()))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if abOutDir == "" {
			if abQuiet {
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(stdout, "\n== %s ==\n%s\n", r.path, r.out)
			}
			return nil
		}
		used := map[string]struct{}{}
		for _, r := range results {
			outFile := uniqueReportPath(abOutDir, r.path, formatExt(format), used)
			if err := utils.SafeWriteFile(outFile, r.out); err != nil {
				return err
			}
			if !abQuiet {
				successf(stdout, "Wrote analysis to %s", outFile)
			}
		}
		return nil
	},
}

// expandInputs resolves globs and literal paths, dropping duplicates.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// uniqueReportPath picks stem.summary.ext, then stem__2.summary.ext and so
// on when a file of that name exists or was already written in this run.
func uniqueReportPath(outDir, input, ext string, used map[string]struct{}) string {
	taken := func(p string) bool {
		if _, ok := used[p]; ok {
			return true
		}
		_, err := os.Stat(p)
		return err == nil
	}
	p := utils.ReportPath(outDir, input, ext)
	if taken(p) {
		base := filepath.Base(input)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		for idx := 2; ; idx++ {
			cand := filepath.Join(outDir, fmt.Sprintf("%s__%d.summary%s", stem, idx, ext))
			if !taken(cand) {
				p = cand
				break
			}
		}
	}
	used[p] = struct{}{}
	return p
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for per-file reports (stdout if omitted)")
	analyzeBatchCmd.Flags().StringVar(&abFormat, "format", "", "output format: markdown|json|yaml|table (defaults to config)")
	analyzeBatchCmd.Flags().IntVar(&abJobs, "jobs", 4, "number of files analyzed concurrently")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
	abInput.register(analyzeBatchCmd)
	abArms.register(analyzeBatchCmd)
}
