package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kodh49/YACHT/internal/config"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded settings, seeding per-command flag defaults.
	cfg config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "yacht",
	Short: "YACHT - hypothesis testing for organism presence in metagenomes",
	Long: `YACHT detects which reference organisms are present in a metagenomic
sample using FracMinHash sketches and a statistical hypothesis test with
guaranteed false-positive control.

The workflow has three stages:
  1. sketch: build FracMinHash sketches from FASTA files
  2. train:  preprocess a reference sketch collection into a database
  3. run:    test a sample sketch against a trained database

An optional fourth stage, abundance, estimates relative organism
abundances by linear programming.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Accept snake_case flag spellings (--sample_file) alongside the
	// canonical kebab-case.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "yacht.yaml", "Settings file (optional; defaults apply when absent)")

	rootCmd.AddCommand(sketchCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(abundanceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
