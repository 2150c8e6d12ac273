package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kodh49/YACHT/internal/hypothesis"
	"github.com/kodh49/YACHT/internal/reference"
	"github.com/kodh49/YACHT/internal/report"
	"github.com/kodh49/YACHT/internal/sig"
	"github.com/kodh49/YACHT/internal/store"
)

var (
	runJSON         string
	runSampleFile   string
	runSignificance float64
	runMinCoverage  []float64
	runKeepRaw      bool
	runShowAll      bool
	runOutFilename  string
	runOutDir       string
	runNumThreads   int
)

// runCmd tests a sample sketch against a trained reference database
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Detect organisms present in a sample sketch",
	Long: `Runs the hypothesis test for every genome in a trained reference
database against a sample sketch and writes an Excel report with one
sheet per requested minimum coverage.

A genome is reported present when its exclusive k-mer matches reach the
acceptance threshold derived from the training ANI threshold and the
requested significance.

Example:
  yacht run --json gtdb_ani0.95_config.json --sample-file sample.sig --significance 0.99 --min-coverage 1,0.5,0.1`,
	Args: cobra.NoArgs,
	RunE: runRecovery,
}

func init() {
	runCmd.Flags().StringVar(&runJSON, "json", "", "Training config JSON produced by yacht train (required)")
	runCmd.Flags().StringVar(&runSampleFile, "sample-file", "", "Sample signature file, .sig or .sig.zip (required)")
	runCmd.Flags().Float64Var(&runSignificance, "significance", 0, "Minimum probability of individual true negative (default from settings)")
	runCmd.Flags().Float64SliceVar(&runMinCoverage, "min-coverage", nil, "Minimum coverage values in [0, 1], one output sheet each (default from settings)")
	runCmd.Flags().BoolVar(&runKeepRaw, "keep-raw", false, "Keep an unfiltered raw_result sheet in the output")
	runCmd.Flags().BoolVar(&runShowAll, "show-all", false, "Report all organisms, not only those deemed present")
	runCmd.Flags().StringVar(&runOutFilename, "out-filename", "", "Output Excel filename (default from settings)")
	runCmd.Flags().StringVar(&runOutDir, "outdir", ".", "Output directory")
	runCmd.Flags().IntVar(&runNumThreads, "num-threads", 0, "Worker pool size (default from settings)")
	runCmd.MarkFlagRequired("json")
	runCmd.MarkFlagRequired("sample-file")
}

func runRecovery(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	significance := runSignificance
	if significance == 0 {
		significance = cfg.Significance
	}
	coverages := runMinCoverage
	if coverages == nil {
		coverages = cfg.MinCoverageList
	}
	outFilename := runOutFilename
	if outFilename == "" {
		outFilename = cfg.OutFilename
	}
	numThreads := runNumThreads
	if numThreads == 0 {
		numThreads = cfg.NumThreads
	}

	if err := hypothesis.ValidateCoverageList(coverages); err != nil {
		return err
	}
	coverages = hypothesis.NormalizeCoverageList(coverages)

	trainCfg, err := reference.LoadTrainingConfig(runJSON)
	if err != nil {
		return err
	}
	db, err := store.Open(trainCfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("Loading sample sketch",
		zap.String("sample_file", runSampleFile),
		zap.Int("ksize", trainCfg.Ksize))
	sample, err := sig.LoadSample(runSampleFile, trainCfg.Ksize)
	if err != nil {
		return err
	}

	results, err := hypothesis.Recover(ctx, db, sample, hypothesis.Params{
		Significance: significance,
		NumThreads:   numThreads,
	}, logger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(runOutDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	outPath := filepath.Join(runOutDir, outFilename)
	if err := report.WriteExcel(outPath, results, coverages, report.ExcelOptions{
		KeepRaw: runKeepRaw,
		ShowAll: runShowAll,
	}); err != nil {
		return err
	}

	present := 0
	for _, r := range results {
		if r.InSampleEst {
			present++
		}
	}
	meta := runMetadata{
		Command:        "run",
		TrainingConfig: runJSON,
		SampleFile:     runSampleFile,
		Significance:   significance,
		MinCoverage:    coverages,
		Output:         outPath,
	}
	if err := writeRunMetadata(runOutDir, meta); err != nil {
		return err
	}

	logger.Info("Recovery complete",
		zap.Int("genomes", len(results)),
		zap.Int("present", present),
		zap.String("output", outPath))
	fmt.Printf("Tested %d genomes, %d deemed present at coverage 1\n", len(results), present)
	fmt.Printf("Report: %s\n", outPath)
	return nil
}
