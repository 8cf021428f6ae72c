package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/rwestudy-cli/internal/config"
	"github.com/KaramelBytes/rwestudy-cli/internal/logging"
)

var (
	// Global flags
	cfgFile      string
	debug        bool
	flagLogLevel string

	// Loaded configuration and logger
	cfg    *cfgpkg.Global
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "rwestudy",
	Short: "rwestudy: statistics, hypothesis tests and insights for real-world-evidence study tables",
	Long: `rwestudy loads a per-patient clinical study table (CSV/TSV/XLSX), enriches it with derived
fields and produces descriptive statistics, treatment-effectiveness comparisons, subgroup
breakdowns, hypothesis tests, patient clusters and plain-language insights.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.rwestudy/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults so analysis still runs
		warnf(os.Stderr, "failed to load config: %v", err)
		d := cfgpkg.Defaults()
		c = &d
	}
	cfg = c

	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	l, err := logging.New(cfg.LogLevel, debug)
	if err != nil {
		warnf(os.Stderr, "logger: %v", err)
		return
	}
	logger = l
}

// currentConfig returns the loaded configuration or the defaults.
func currentConfig() cfgpkg.Global {
	if cfg == nil {
		return cfgpkg.Defaults()
	}
	return *cfg
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
)

func successf(w io.Writer, format string, args ...any) {
	okColor.Fprintf(w, "✓ "+format+"\n", args...)
}

func warnf(w io.Writer, format string, args ...any) {
	warnColor.Fprintf(w, "⚠ Warning: "+format+"\n", args...)
}
